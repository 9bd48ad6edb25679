package models

const DefaultTemplate = "{{data}}"

// Webhook is an endpoint registration: where to send entity mutation
// notifications and how to shape them.
type Webhook struct {
	ID             string            `json:"id"`
	TenantID       string            `json:"tenant_id"`
	URL            string            `json:"url"`
	Method         string            `json:"method"`
	EntityType     string            `json:"entity_type"`
	Events         []string          `json:"events"` // JSON array in DB
	Enabled        bool              `json:"enabled"`
	Description    string            `json:"description,omitempty"`
	Template       string            `json:"template"`
	Headers        map[string]string `json:"headers,omitempty"` // JSON object in DB
	LinkedEntityID *string           `json:"linked_entity_id,omitempty"`
	Secret         string            `json:"-"`
	CreatedAt      int64             `json:"created_at"`
	UpdatedAt      int64             `json:"updated_at"`
}

// Selects reports whether the registration fires for the given mutation.
// An empty event list never fires.
func (w *Webhook) Selects(entityType, event, entityID string) bool {
	if !w.Enabled {
		return false
	}
	if w.EntityType != EntityAll && w.EntityType != entityType {
		return false
	}
	if w.LinkedEntityID != nil && *w.LinkedEntityID != entityID {
		return false
	}
	for _, e := range w.Events {
		if e == event {
			return true
		}
	}
	return false
}

// WebhookEvent is the payload of a mutation handed to the dispatcher.
type WebhookEvent struct {
	ID         string      `json:"id"`
	TenantID   string      `json:"tenant_id"`
	EntityType string      `json:"entity_type"`
	Event      string      `json:"event"`
	EntityID   string      `json:"entity_id"`
	Timestamp  int64       `json:"timestamp"`
	Data       interface{} `json:"data"`
}
