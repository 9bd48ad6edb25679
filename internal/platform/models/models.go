package models

// Organization is a tenant. Its operational data lives in a dedicated tenant
// database; the global database only keeps this record and access tokens.
type Organization struct {
	ID        string `json:"id"`
	Slug      string `json:"slug"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"created_at"`
}

// Tracked entity types.
const (
	EntityContact  = "contact"
	EntityGroup    = "group"
	EntityFilter   = "filter"
	EntityWorkflow = "workflow"
	EntityLog      = "log"
	EntityWebhook  = "webhook"
	EntityAll      = "all"
)

// Mutation events.
const (
	EventCreate = "create"
	EventUpdate = "update"
	EventDelete = "delete"
)

var entityTypes = map[string]bool{
	EntityContact:  true,
	EntityGroup:    true,
	EntityFilter:   true,
	EntityWorkflow: true,
	EntityLog:      true,
	EntityWebhook:  true,
}

// IsEntityType reports whether t is a tracked entity type. The wildcard is
// only valid on registrations, see IsRegistrationEntityType.
func IsEntityType(t string) bool {
	return entityTypes[t]
}

func IsRegistrationEntityType(t string) bool {
	return t == EntityAll || entityTypes[t]
}

func IsEvent(e string) bool {
	switch e {
	case EventCreate, EventUpdate, EventDelete:
		return true
	}
	return false
}
