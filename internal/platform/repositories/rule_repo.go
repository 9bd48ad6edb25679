package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"relaydesk/internal/platform/database"
	"relaydesk/internal/platform/models"
)

// RuleRepository stores message filters in the tenant database.
type RuleRepository struct {
	dbs database.TenantDBProvider
}

func NewRuleRepository(dbs database.TenantDBProvider) *RuleRepository {
	return &RuleRepository{dbs: dbs}
}

const ruleColumns = `seq, id, tenant_id, name, kind, pattern, active, priority, ai_prompt, workflow_id, group_ids, support_contact_ids, created_at, updated_at`

func (r *RuleRepository) Create(ctx context.Context, rule *models.Rule) error {
	db, err := r.dbs.ForTenant(rule.TenantID)
	if err != nil {
		return err
	}

	if rule.ID == "" {
		rule.ID = newID("flt_")
	}
	if rule.CreatedAt == 0 {
		rule.CreatedAt = now()
	}
	rule.UpdatedAt = rule.CreatedAt

	groups, contacts, err := marshalRuleLists(rule)
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx, `
		INSERT INTO filters (id, tenant_id, name, kind, pattern, active, priority, ai_prompt, workflow_id, group_ids, support_contact_ids, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rule.ID, rule.TenantID, rule.Name, rule.Kind, rule.Pattern, boolToInt(rule.Active), rule.Priority, rule.AIPrompt,
		rule.WorkflowID, groups, contacts, rule.CreatedAt, rule.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}

	rule.Seq, err = res.LastInsertId()
	return err
}

func (r *RuleRepository) GetByID(ctx context.Context, tenantID, id string) (*models.Rule, error) {
	db, err := r.dbs.ForTenant(tenantID)
	if err != nil {
		return nil, err
	}

	row := db.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM filters WHERE tenant_id = ? AND id = ?`, tenantID, id)
	rule, err := scanRule(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rule, err
}

func (r *RuleRepository) List(ctx context.Context, tenantID string) ([]*models.Rule, error) {
	db, err := r.dbs.ForTenant(tenantID)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT `+ruleColumns+` FROM filters WHERE tenant_id = ? ORDER BY priority DESC, created_at, seq
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*models.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// ListActiveRulesForGroup returns a snapshot of the active rules that target
// groupID. Group membership lives in a JSON column and is checked here.
func (r *RuleRepository) ListActiveRulesForGroup(ctx context.Context, tenantID, groupID string) ([]*models.Rule, error) {
	db, err := r.dbs.ForTenant(tenantID)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT `+ruleColumns+` FROM filters WHERE tenant_id = ? AND active = 1
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*models.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		if rule.TargetsGroup(groupID) {
			rules = append(rules, rule)
		}
	}
	return rules, rows.Err()
}

func (r *RuleRepository) Update(ctx context.Context, rule *models.Rule) error {
	db, err := r.dbs.ForTenant(rule.TenantID)
	if err != nil {
		return err
	}

	groups, contacts, err := marshalRuleLists(rule)
	if err != nil {
		return err
	}
	rule.UpdatedAt = now()

	res, err := db.ExecContext(ctx, `
		UPDATE filters
		SET name = ?, kind = ?, pattern = ?, active = ?, priority = ?, ai_prompt = ?, workflow_id = ?,
		    group_ids = ?, support_contact_ids = ?, updated_at = ?
		WHERE tenant_id = ? AND id = ?
	`, rule.Name, rule.Kind, rule.Pattern, boolToInt(rule.Active), rule.Priority, rule.AIPrompt, rule.WorkflowID,
		groups, contacts, rule.UpdatedAt, rule.TenantID, rule.ID)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func (r *RuleRepository) Deactivate(ctx context.Context, tenantID, id string) error {
	db, err := r.dbs.ForTenant(tenantID)
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx, `UPDATE filters SET active = 0, updated_at = ? WHERE tenant_id = ? AND id = ?`, now(), tenantID, id)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func (r *RuleRepository) Delete(ctx context.Context, tenantID, id string) error {
	db, err := r.dbs.ForTenant(tenantID)
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx, `DELETE FROM filters WHERE tenant_id = ? AND id = ?`, tenantID, id)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// HasDeliveryHistory reports whether any delivery log references the rule.
func (r *RuleRepository) HasDeliveryHistory(ctx context.Context, tenantID, id string) (bool, error) {
	db, err := r.dbs.ForTenant(tenantID)
	if err != nil {
		return false, err
	}

	var exists int
	err = db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM delivery_logs WHERE tenant_id = ? AND rule_id = ?)`, tenantID, id).Scan(&exists)
	return exists == 1, err
}

func marshalRuleLists(rule *models.Rule) (string, string, error) {
	groups, err := json.Marshal(nonNil(rule.GroupIDs))
	if err != nil {
		return "", "", err
	}
	contacts, err := json.Marshal(nonNil(rule.SupportContactIDs))
	if err != nil {
		return "", "", err
	}
	return string(groups), string(contacts), nil
}

func scanRule(row rowScanner) (*models.Rule, error) {
	var rule models.Rule
	var workflowID sql.NullString
	var groupsStr, contactsStr string

	err := row.Scan(&rule.Seq, &rule.ID, &rule.TenantID, &rule.Name, &rule.Kind, &rule.Pattern, &rule.Active, &rule.Priority,
		&rule.AIPrompt, &workflowID, &groupsStr, &contactsStr, &rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if workflowID.Valid {
		rule.WorkflowID = &workflowID.String
	}
	if err := json.Unmarshal([]byte(groupsStr), &rule.GroupIDs); err != nil {
		return nil, fmt.Errorf("filter %s: decode group_ids: %w", rule.ID, err)
	}
	if err := json.Unmarshal([]byte(contactsStr), &rule.SupportContactIDs); err != nil {
		return nil, fmt.Errorf("filter %s: decode support_contact_ids: %w", rule.ID, err)
	}
	return &rule, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
