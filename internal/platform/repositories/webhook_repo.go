package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"relaydesk/internal/platform/database"
	"relaydesk/internal/platform/models"
)

// WebhookRepository stores endpoint registrations in the tenant database.
type WebhookRepository struct {
	dbs database.TenantDBProvider
}

func NewWebhookRepository(dbs database.TenantDBProvider) *WebhookRepository {
	return &WebhookRepository{dbs: dbs}
}

const webhookColumns = `id, tenant_id, url, method, entity_type, events, enabled, description, template, headers, linked_entity_id, secret, created_at, updated_at`

func (r *WebhookRepository) Create(ctx context.Context, webhook *models.Webhook) error {
	db, err := r.dbs.ForTenant(webhook.TenantID)
	if err != nil {
		return err
	}

	if webhook.ID == "" {
		webhook.ID = newID("wh_")
	}
	webhook.CreatedAt = now()
	webhook.UpdatedAt = webhook.CreatedAt
	if webhook.Template == "" {
		webhook.Template = models.DefaultTemplate
	}

	eventsJSON, headersJSON, err := marshalWebhookFields(webhook)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO webhooks (id, tenant_id, url, method, entity_type, events, enabled, description, template, headers, linked_entity_id, secret, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, webhook.ID, webhook.TenantID, webhook.URL, webhook.Method, webhook.EntityType, eventsJSON, boolToInt(webhook.Enabled),
		webhook.Description, webhook.Template, headersJSON, webhook.LinkedEntityID, webhook.Secret, webhook.CreatedAt, webhook.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

// GetEndpoint returns nil, nil when the registration does not exist.
func (r *WebhookRepository) GetEndpoint(ctx context.Context, tenantID, id string) (*models.Webhook, error) {
	db, err := r.dbs.ForTenant(tenantID)
	if err != nil {
		return nil, err
	}

	row := db.QueryRowContext(ctx, `SELECT `+webhookColumns+` FROM webhooks WHERE tenant_id = ? AND id = ?`, tenantID, id)
	w, err := scanWebhook(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return w, err
}

func (r *WebhookRepository) List(ctx context.Context, tenantID string) ([]*models.Webhook, error) {
	db, err := r.dbs.ForTenant(tenantID)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT `+webhookColumns+` FROM webhooks WHERE tenant_id = ? ORDER BY created_at DESC, id`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var webhooks []*models.Webhook
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, err
		}
		webhooks = append(webhooks, w)
	}
	return webhooks, rows.Err()
}

// ListEnabledEndpoints returns the enabled registrations for entityType (or
// the "all" wildcard) that subscribe to event. Event lists are JSON and are
// matched here.
func (r *WebhookRepository) ListEnabledEndpoints(ctx context.Context, tenantID, entityType, event string) ([]*models.Webhook, error) {
	db, err := r.dbs.ForTenant(tenantID)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT `+webhookColumns+` FROM webhooks
		WHERE tenant_id = ? AND enabled = 1 AND entity_type IN (?, ?)
		ORDER BY created_at, id
	`, tenantID, entityType, models.EntityAll)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matched []*models.Webhook
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, err
		}
		for _, e := range w.Events {
			if e == event {
				matched = append(matched, w)
				break
			}
		}
	}
	return matched, rows.Err()
}

func (r *WebhookRepository) Update(ctx context.Context, webhook *models.Webhook) error {
	db, err := r.dbs.ForTenant(webhook.TenantID)
	if err != nil {
		return err
	}

	eventsJSON, headersJSON, err := marshalWebhookFields(webhook)
	if err != nil {
		return err
	}
	webhook.UpdatedAt = now()

	res, err := db.ExecContext(ctx, `
		UPDATE webhooks
		SET url = ?, method = ?, entity_type = ?, events = ?, enabled = ?, description = ?, template = ?,
		    headers = ?, linked_entity_id = ?, secret = ?, updated_at = ?
		WHERE tenant_id = ? AND id = ?
	`, webhook.URL, webhook.Method, webhook.EntityType, eventsJSON, boolToInt(webhook.Enabled), webhook.Description,
		webhook.Template, headersJSON, webhook.LinkedEntityID, webhook.Secret, webhook.UpdatedAt, webhook.TenantID, webhook.ID)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func (r *WebhookRepository) Delete(ctx context.Context, tenantID, id string) error {
	db, err := r.dbs.ForTenant(tenantID)
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx, `DELETE FROM webhooks WHERE tenant_id = ? AND id = ?`, tenantID, id)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func marshalWebhookFields(w *models.Webhook) (string, string, error) {
	eventsJSON, err := json.Marshal(nonNil(w.Events))
	if err != nil {
		return "", "", err
	}
	headers := w.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	headersJSON, err := json.Marshal(headers)
	if err != nil {
		return "", "", err
	}
	return string(eventsJSON), string(headersJSON), nil
}

func scanWebhook(row rowScanner) (*models.Webhook, error) {
	var w models.Webhook
	var eventsStr, headersStr string
	var linked sql.NullString

	err := row.Scan(&w.ID, &w.TenantID, &w.URL, &w.Method, &w.EntityType, &eventsStr, &w.Enabled, &w.Description,
		&w.Template, &headersStr, &linked, &w.Secret, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if linked.Valid {
		w.LinkedEntityID = &linked.String
	}
	if err := json.Unmarshal([]byte(eventsStr), &w.Events); err != nil {
		return nil, fmt.Errorf("webhook %s: decode events: %w", w.ID, err)
	}
	if err := json.Unmarshal([]byte(headersStr), &w.Headers); err != nil {
		return nil, fmt.Errorf("webhook %s: decode headers: %w", w.ID, err)
	}
	return &w, nil
}
