package repositories

import (
	"context"
	"database/sql"

	"relaydesk/internal/platform/database"
	"relaydesk/internal/platform/models"
)

type WorkflowRepository struct {
	dbs database.TenantDBProvider
}

func NewWorkflowRepository(dbs database.TenantDBProvider) *WorkflowRepository {
	return &WorkflowRepository{dbs: dbs}
}

func (r *WorkflowRepository) Create(ctx context.Context, wf *models.Workflow) error {
	db, err := r.dbs.ForTenant(wf.TenantID)
	if err != nil {
		return err
	}

	if wf.ID == "" {
		wf.ID = newID("wf_")
	}
	wf.CreatedAt = now()
	wf.UpdatedAt = wf.CreatedAt

	_, err = db.ExecContext(ctx, `
		INSERT INTO workflows (id, tenant_id, name, webhook_url, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, wf.ID, wf.TenantID, wf.Name, wf.WebhookURL, boolToInt(wf.Active), wf.CreatedAt, wf.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

// GetWorkflow returns nil, nil when the workflow does not exist.
func (r *WorkflowRepository) GetWorkflow(ctx context.Context, tenantID, id string) (*models.Workflow, error) {
	db, err := r.dbs.ForTenant(tenantID)
	if err != nil {
		return nil, err
	}

	var wf models.Workflow
	err = db.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, webhook_url, active, created_at, updated_at
		FROM workflows WHERE tenant_id = ? AND id = ?
	`, tenantID, id).Scan(&wf.ID, &wf.TenantID, &wf.Name, &wf.WebhookURL, &wf.Active, &wf.CreatedAt, &wf.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &wf, nil
}

func (r *WorkflowRepository) List(ctx context.Context, tenantID string) ([]*models.Workflow, error) {
	db, err := r.dbs.ForTenant(tenantID)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, tenant_id, name, webhook_url, active, created_at, updated_at
		FROM workflows WHERE tenant_id = ? ORDER BY created_at DESC, id
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workflows []*models.Workflow
	for rows.Next() {
		var wf models.Workflow
		if err := rows.Scan(&wf.ID, &wf.TenantID, &wf.Name, &wf.WebhookURL, &wf.Active, &wf.CreatedAt, &wf.UpdatedAt); err != nil {
			return nil, err
		}
		workflows = append(workflows, &wf)
	}
	return workflows, rows.Err()
}

func (r *WorkflowRepository) Delete(ctx context.Context, tenantID, id string) error {
	db, err := r.dbs.ForTenant(tenantID)
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx, `DELETE FROM workflows WHERE tenant_id = ? AND id = ?`, tenantID, id)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}
