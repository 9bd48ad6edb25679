package filters

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// HTTPClassifier asks an external classification service whether a text
// matches a prompt. The service answers {"match": bool} or {"label": "..."}.
type HTTPClassifier struct {
	client *resty.Client
	url    string
}

type classifyRequest struct {
	Prompt string `json:"prompt"`
	Text   string `json:"text"`
}

type classifyResponse struct {
	Match *bool  `json:"match"`
	Label string `json:"label"`
}

func NewHTTPClassifier(url, token string, timeout time.Duration) *HTTPClassifier {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if token != "" {
		client.SetAuthToken(token)
	}
	return &HTTPClassifier{client: client, url: url}
}

func (c *HTTPClassifier) Classify(ctx context.Context, prompt, text string) (bool, error) {
	var out classifyResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(classifyRequest{Prompt: prompt, Text: text}).
		SetResult(&out).
		Post(c.url)
	if err != nil {
		return false, fmt.Errorf("classifier request: %w", err)
	}
	if resp.IsError() {
		return false, fmt.Errorf("classifier returned status %d", resp.StatusCode())
	}

	if out.Match != nil {
		return *out.Match, nil
	}
	return positiveLabel(out.Label), nil
}

// positiveLabel maps a label answer to a match. "alert" and the older
// "notification" label mean the same thing.
func positiveLabel(label string) bool {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "yes", "true", "match", "alert", "notification":
		return true
	}
	return false
}
