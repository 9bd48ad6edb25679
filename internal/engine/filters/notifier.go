package filters

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"

	"relaydesk/internal/platform/models"
)

// HTTPNotifier posts a match to the workflow's webhook URL. Timeouts come
// from the caller's context.
type HTTPNotifier struct {
	client *resty.Client
}

func NewHTTPNotifier() *HTTPNotifier {
	return &HTTPNotifier{
		client: resty.New().SetHeader("Content-Type", "application/json"),
	}
}

func (n *HTTPNotifier) Notify(ctx context.Context, workflow *models.Workflow, payload interface{}) error {
	resp, err := n.client.R().
		SetContext(ctx).
		SetHeader("X-Relaydesk-Workflow", workflow.ID).
		SetBody(payload).
		Post(workflow.WebhookURL)
	if err != nil {
		return fmt.Errorf("notify workflow: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("workflow endpoint returned status %d", resp.StatusCode())
	}
	return nil
}
