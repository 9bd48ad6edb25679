package models

import "encoding/json"

const (
	StatusPending  = "pending"
	StatusRetrying = "retrying"
	StatusSuccess  = "success"
	StatusWarning  = "warning"
	StatusInfo     = "info"
	StatusError    = "error"
)

// IsTerminalStatus reports whether a delivery log in this status can no
// longer advance.
func IsTerminalStatus(status string) bool {
	return status == StatusSuccess || status == StatusError
}

// DeliveryLog is one delivery attempt chain: a workflow notification for a
// matched rule or a webhook delivery for a mutation.
type DeliveryLog struct {
	ID           string          `json:"id"`
	TenantID     string          `json:"tenant_id"`
	WorkflowID   string          `json:"workflow_id"`
	RuleID       string          `json:"rule_id,omitempty"`
	ExecutionID  string          `json:"execution_id"`
	NodeName     string          `json:"node_name"`
	ErrorMessage string          `json:"error_message,omitempty"`
	ErrorStack   string          `json:"error_stack,omitempty"`
	InputData    json.RawMessage `json:"input_data"`
	Status       string          `json:"status"`
	RetriesCount int             `json:"retries_count"`
	CreatedAt    int64           `json:"created_at"`
	UpdatedAt    int64           `json:"updated_at"`
}
