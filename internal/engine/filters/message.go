package filters

import (
	"time"

	"relaydesk/internal/platform/models"
)

// Message is an inbound chat message as seen by the evaluator.
type Message struct {
	Text       string    `json:"text"`
	Type       string    `json:"type"`
	SenderRole string    `json:"sender_role"`
	SenderID   string    `json:"sender_id"`
	GroupID    string    `json:"group_id"`
	ChannelID  string    `json:"channel_id,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// MatchResult is the outcome of one evaluation. The zero value is NoMatch.
type MatchResult struct {
	Matched           bool             `json:"matched"`
	Rule              *models.Rule     `json:"rule,omitempty"`
	Workflow          *models.Workflow `json:"workflow,omitempty"`
	SupportContactIDs []string         `json:"support_contact_ids,omitempty"`
	DeliveryLogID     string           `json:"delivery_log_id,omitempty"`
	DeliveryStatus    string           `json:"delivery_status,omitempty"`
}

// NoMatch is returned when no active rule matched.
var NoMatch = MatchResult{}
