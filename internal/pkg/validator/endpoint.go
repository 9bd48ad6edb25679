package validator

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

var allowedMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE"}

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,62}$`)

// EndpointURL checks that raw is an absolute http(s) URL with a host.
func EndpointURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return errors.New("invalid url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("url scheme must be http or https")
	}
	if u.Host == "" {
		return errors.New("url has no host")
	}
	return nil
}

// Method normalizes an HTTP method. An empty method defaults to POST.
func Method(m string) (string, error) {
	m = strings.ToUpper(strings.TrimSpace(m))
	if m == "" {
		return "POST", nil
	}
	for _, allowed := range allowedMethods {
		if m == allowed {
			return m, nil
		}
	}
	return "", errors.New("method must be one of GET, POST, PUT, PATCH, DELETE")
}

func Slug(s string) error {
	if !slugPattern.MatchString(s) {
		return errors.New("slug must be 2-63 lowercase letters, digits or dashes")
	}
	return nil
}
