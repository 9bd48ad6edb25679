package models

const (
	RuleKeyword          = "keyword"
	RuleRegex            = "regex"
	RuleSenderRole       = "sender_role"
	RuleMessageType      = "message_type"
	RuleAIClassification = "ai_classification"
)

// AllGroups in GroupIDs makes a rule apply to every group.
const AllGroups = "*"

// Rule is a message filter, stored in the filters table.
type Rule struct {
	ID                string   `json:"id"`
	TenantID          string   `json:"tenant_id"`
	Name              string   `json:"name"`
	Kind              string   `json:"kind"`
	Pattern           string   `json:"pattern"`
	Active            bool     `json:"active"`
	Priority          int      `json:"priority"`
	AIPrompt          string   `json:"ai_prompt,omitempty"`
	WorkflowID        *string  `json:"workflow_id,omitempty"`
	GroupIDs          []string `json:"group_ids"`           // JSON array in DB
	SupportContactIDs []string `json:"support_contact_ids"` // JSON array in DB
	Seq               int64    `json:"-"`
	CreatedAt         int64    `json:"created_at"`
	UpdatedAt         int64    `json:"updated_at"`
}

// TargetsGroup reports whether the rule applies to messages from groupID.
// A rule with no groups is treated as unrestricted.
func (r *Rule) TargetsGroup(groupID string) bool {
	if len(r.GroupIDs) == 0 {
		return true
	}
	for _, g := range r.GroupIDs {
		if g == AllGroups || g == groupID {
			return true
		}
	}
	return false
}
