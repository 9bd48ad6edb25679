package repositories

import (
	"context"
	"errors"
	"testing"

	"relaydesk/internal/platform/models"
)

func TestRuleRepository_ListActiveRulesForGroup(t *testing.T) {
	repo := NewRuleRepository(newTenantDBs(t))
	ctx := context.Background()

	rules := []*models.Rule{
		{TenantID: "org_1", Name: "g1 only", Kind: models.RuleKeyword, Pattern: "spam", Active: true, GroupIDs: []string{"g1"}, SupportContactIDs: []string{"c1"}},
		{TenantID: "org_1", Name: "everywhere", Kind: models.RuleKeyword, Pattern: "help", Active: true, GroupIDs: []string{models.AllGroups}, SupportContactIDs: []string{"c1"}},
		{TenantID: "org_1", Name: "inactive", Kind: models.RuleKeyword, Pattern: "x", Active: false, GroupIDs: []string{"g1"}, SupportContactIDs: []string{"c1"}},
		{TenantID: "org_1", Name: "g2 only", Kind: models.RuleKeyword, Pattern: "y", Active: true, GroupIDs: []string{"g2"}, SupportContactIDs: []string{"c1"}},
	}
	for _, r := range rules {
		if err := repo.Create(ctx, r); err != nil {
			t.Fatalf("Create(%s) error = %v", r.Name, err)
		}
	}
	if rules[1].Seq <= rules[0].Seq {
		t.Errorf("Seq not increasing: %d then %d", rules[0].Seq, rules[1].Seq)
	}

	got, err := repo.ListActiveRulesForGroup(ctx, "org_1", "g1")
	if err != nil {
		t.Fatalf("ListActiveRulesForGroup() error = %v", err)
	}

	names := map[string]bool{}
	for _, r := range got {
		names[r.Name] = true
	}
	if len(got) != 2 || !names["g1 only"] || !names["everywhere"] {
		t.Errorf("ListActiveRulesForGroup() names = %v", names)
	}
}

func TestRuleRepository_UpdateDeactivateDelete(t *testing.T) {
	dbs := newTenantDBs(t)
	repo := NewRuleRepository(dbs)
	logs := NewDeliveryLogRepository(dbs)
	ctx := context.Background()

	wf := "wf_1"
	rule := &models.Rule{TenantID: "org_1", Name: "r", Kind: models.RuleRegex, Pattern: `\d+`, Active: true, WorkflowID: &wf,
		GroupIDs: []string{"g1"}, SupportContactIDs: []string{"c1", "c2"}}
	if err := repo.Create(ctx, rule); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	rule.Priority = 7
	if err := repo.Update(ctx, rule); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "org_1", rule.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID() = %v, %v", got, err)
	}
	if got.Priority != 7 || got.WorkflowID == nil || *got.WorkflowID != "wf_1" || len(got.SupportContactIDs) != 2 {
		t.Errorf("GetByID() = %+v", got)
	}

	has, err := repo.HasDeliveryHistory(ctx, "org_1", rule.ID)
	if err != nil || has {
		t.Fatalf("HasDeliveryHistory() = %v, %v; want false", has, err)
	}
	if err := logs.Append(ctx, &models.DeliveryLog{TenantID: "org_1", RuleID: rule.ID, ExecutionID: "exec_1"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	has, err = repo.HasDeliveryHistory(ctx, "org_1", rule.ID)
	if err != nil || !has {
		t.Fatalf("HasDeliveryHistory() = %v, %v; want true", has, err)
	}

	if err := repo.Deactivate(ctx, "org_1", rule.ID); err != nil {
		t.Fatalf("Deactivate() error = %v", err)
	}
	active, _ := repo.ListActiveRulesForGroup(ctx, "org_1", "g1")
	if len(active) != 0 {
		t.Errorf("deactivated rule still listed: %+v", active)
	}

	if err := repo.Delete(ctx, "org_1", rule.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := repo.Delete(ctx, "org_1", rule.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() second time error = %v, want ErrNotFound", err)
	}
}
