package models

import "testing"

func strPtr(s string) *string { return &s }

func TestWebhook_Selects(t *testing.T) {
	tests := []struct {
		name     string
		hook     Webhook
		entity   string
		event    string
		entityID string
		want     bool
	}{
		{"exact entity and event", Webhook{Enabled: true, EntityType: EntityContact, Events: []string{EventCreate}}, EntityContact, EventCreate, "c1", true},
		{"wildcard entity", Webhook{Enabled: true, EntityType: EntityAll, Events: []string{EventDelete}}, EntityGroup, EventDelete, "g1", true},
		{"disabled", Webhook{Enabled: false, EntityType: EntityAll, Events: []string{EventCreate}}, EntityContact, EventCreate, "c1", false},
		{"other entity", Webhook{Enabled: true, EntityType: EntityGroup, Events: []string{EventCreate}}, EntityContact, EventCreate, "c1", false},
		{"event not subscribed", Webhook{Enabled: true, EntityType: EntityContact, Events: []string{EventUpdate}}, EntityContact, EventCreate, "c1", false},
		{"empty events never fire", Webhook{Enabled: true, EntityType: EntityAll, Events: nil}, EntityContact, EventCreate, "c1", false},
		{"linked entity matches", Webhook{Enabled: true, EntityType: EntityContact, Events: []string{EventUpdate}, LinkedEntityID: strPtr("c1")}, EntityContact, EventUpdate, "c1", true},
		{"linked entity differs", Webhook{Enabled: true, EntityType: EntityContact, Events: []string{EventUpdate}, LinkedEntityID: strPtr("c1")}, EntityContact, EventUpdate, "c2", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.hook.Selects(tt.entity, tt.event, tt.entityID); got != tt.want {
				t.Errorf("Selects() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRule_TargetsGroup(t *testing.T) {
	tests := []struct {
		name   string
		groups []string
		group  string
		want   bool
	}{
		{"listed", []string{"g1", "g2"}, "g2", true},
		{"not listed", []string{"g1"}, "g2", false},
		{"wildcard", []string{AllGroups}, "g9", true},
		{"empty is unrestricted", nil, "g9", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Rule{GroupIDs: tt.groups}
			if got := r.TargetsGroup(tt.group); got != tt.want {
				t.Errorf("TargetsGroup(%q) = %v, want %v", tt.group, got, tt.want)
			}
		})
	}
}

func TestIsTerminalStatus(t *testing.T) {
	for status, want := range map[string]bool{
		StatusPending:  false,
		StatusRetrying: false,
		StatusWarning:  false,
		StatusInfo:     false,
		StatusSuccess:  true,
		StatusError:    true,
	} {
		if got := IsTerminalStatus(status); got != want {
			t.Errorf("IsTerminalStatus(%q) = %v, want %v", status, got, want)
		}
	}
}
