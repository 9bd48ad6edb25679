package repositories

import (
	"context"
	"database/sql"
	"errors"

	"relaydesk/internal/platform/database"
	"relaydesk/internal/platform/models"
)

// ErrLogFinalized is returned when advancing a delivery log that already
// reached success or error.
var ErrLogFinalized = errors.New("delivery log already finalized")

// DeliveryLogRepository is append-only: after Append only status,
// retries_count and error_message move, and terminal rows never change.
type DeliveryLogRepository struct {
	dbs database.TenantDBProvider
}

func NewDeliveryLogRepository(dbs database.TenantDBProvider) *DeliveryLogRepository {
	return &DeliveryLogRepository{dbs: dbs}
}

const deliveryLogColumns = `id, tenant_id, workflow_id, rule_id, execution_id, node_name, error_message, error_stack, input_data, status, retries_count, created_at, updated_at`

func (r *DeliveryLogRepository) Append(ctx context.Context, entry *models.DeliveryLog) error {
	db, err := r.dbs.ForTenant(entry.TenantID)
	if err != nil {
		return err
	}

	if entry.ID == "" {
		entry.ID = newID("log_")
	}
	if entry.Status == "" {
		entry.Status = models.StatusPending
	}
	entry.CreatedAt = now()
	entry.UpdatedAt = entry.CreatedAt

	input := string(entry.InputData)
	if input == "" {
		input = "{}"
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO delivery_logs (id, tenant_id, workflow_id, rule_id, execution_id, node_name, error_message, error_stack, input_data, status, retries_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.TenantID, entry.WorkflowID, entry.RuleID, entry.ExecutionID, entry.NodeName, entry.ErrorMessage,
		entry.ErrorStack, input, entry.Status, entry.RetriesCount, entry.CreatedAt, entry.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

// AdvanceStatus moves a non-terminal log forward. Returns ErrLogFinalized for
// terminal rows and ErrNotFound for unknown ids.
func (r *DeliveryLogRepository) AdvanceStatus(ctx context.Context, tenantID, id, status string, retries int, errMsg string) error {
	db, err := r.dbs.ForTenant(tenantID)
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx, `
		UPDATE delivery_logs
		SET status = ?, retries_count = ?, error_message = ?, updated_at = ?
		WHERE tenant_id = ? AND id = ? AND status NOT IN (?, ?)
	`, status, retries, errMsg, now(), tenantID, id, models.StatusSuccess, models.StatusError)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	var exists int
	if err := db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM delivery_logs WHERE tenant_id = ? AND id = ?)`, tenantID, id).Scan(&exists); err != nil {
		return err
	}
	if exists == 1 {
		return ErrLogFinalized
	}
	return ErrNotFound
}

func (r *DeliveryLogRepository) GetByID(ctx context.Context, tenantID, id string) (*models.DeliveryLog, error) {
	db, err := r.dbs.ForTenant(tenantID)
	if err != nil {
		return nil, err
	}

	row := db.QueryRowContext(ctx, `SELECT `+deliveryLogColumns+` FROM delivery_logs WHERE tenant_id = ? AND id = ?`, tenantID, id)
	entry, err := scanDeliveryLog(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return entry, err
}

// List returns the most recent logs first.
func (r *DeliveryLogRepository) List(ctx context.Context, tenantID string, limit, offset int) ([]*models.DeliveryLog, error) {
	db, err := r.dbs.ForTenant(tenantID)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT `+deliveryLogColumns+` FROM delivery_logs
		WHERE tenant_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?
	`, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDeliveryLogs(rows)
}

// ListStale returns pending or retrying logs not touched since before.
func (r *DeliveryLogRepository) ListStale(ctx context.Context, tenantID string, before int64) ([]*models.DeliveryLog, error) {
	db, err := r.dbs.ForTenant(tenantID)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT `+deliveryLogColumns+` FROM delivery_logs
		WHERE tenant_id = ? AND status IN (?, ?) AND updated_at < ?
		ORDER BY updated_at
	`, tenantID, models.StatusPending, models.StatusRetrying, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDeliveryLogs(rows)
}

func collectDeliveryLogs(rows *sql.Rows) ([]*models.DeliveryLog, error) {
	var logs []*models.DeliveryLog
	for rows.Next() {
		entry, err := scanDeliveryLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

func scanDeliveryLog(row rowScanner) (*models.DeliveryLog, error) {
	var l models.DeliveryLog
	var input string

	err := row.Scan(&l.ID, &l.TenantID, &l.WorkflowID, &l.RuleID, &l.ExecutionID, &l.NodeName, &l.ErrorMessage,
		&l.ErrorStack, &input, &l.Status, &l.RetriesCount, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	l.InputData = []byte(input)
	return &l, nil
}
