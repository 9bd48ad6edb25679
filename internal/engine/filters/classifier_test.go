package filters

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"relaydesk/internal/platform/models"
)

func TestHTTPClassifier_Classify(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    bool
		wantErr bool
	}{
		{"match true", http.StatusOK, `{"match":true}`, true, false},
		{"match false", http.StatusOK, `{"match":false}`, false, false},
		{"alert label", http.StatusOK, `{"label":"alert"}`, true, false},
		{"notification label", http.StatusOK, `{"label":"Notification"}`, true, false},
		{"other label", http.StatusOK, `{"label":"ignore"}`, false, false},
		{"server error", http.StatusServiceUnavailable, `{}`, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var req classifyRequest
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Prompt != "urgent?" || req.Text != "help" {
					t.Errorf("unexpected request %+v (%v)", req, err)
				}
				if got := r.Header.Get("Authorization"); got != "Bearer secret" {
					t.Errorf("Authorization = %q", got)
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewHTTPClassifier(srv.URL, "secret", time.Second)
			got, err := c.Classify(context.Background(), "urgent?", "help")
			if (err != nil) != tt.wantErr {
				t.Fatalf("Classify() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHTTPNotifier_Notify(t *testing.T) {
	var gotWorkflow string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotWorkflow = r.Header.Get("X-Relaydesk-Workflow")
		if r.URL.Path == "/fail" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n := NewHTTPNotifier()
	ok := &models.Workflow{ID: "wf_1", WebhookURL: srv.URL + "/ok"}
	if err := n.Notify(context.Background(), ok, map[string]string{"rule_id": "r1"}); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if gotWorkflow != "wf_1" {
		t.Errorf("X-Relaydesk-Workflow = %q", gotWorkflow)
	}

	fail := &models.Workflow{ID: "wf_2", WebhookURL: srv.URL + "/fail"}
	if err := n.Notify(context.Background(), fail, nil); err == nil {
		t.Error("expected error for 502 response")
	}
}
