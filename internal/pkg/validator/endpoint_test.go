package validator

import "testing"

func TestEndpointURL(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://hooks.example.com/x", false},
		{"http://127.0.0.1:8080/hook", false},
		{"ftp://example.com", true},
		{"://bad", true},
		{"/relative/path", true},
		{"https://", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if err := EndpointURL(tt.url); (err != nil) != tt.wantErr {
				t.Errorf("EndpointURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestMethod(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", "POST", false},
		{"get", "GET", false},
		{" patch ", "PATCH", false},
		{"DELETE", "DELETE", false},
		{"TRACE", "", true},
	}

	for _, tt := range tests {
		got, err := Method(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("Method(%q) = %q, %v; want %q, wantErr %v", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestSlug(t *testing.T) {
	for s, ok := range map[string]bool{"acme": true, "acme-2": true, "A": false, "-acme": false, "a b": false} {
		if err := Slug(s); (err == nil) != ok {
			t.Errorf("Slug(%q) error = %v, want ok=%v", s, err, ok)
		}
	}
}
