package repositories

import (
	"context"
	"errors"
	"testing"

	"relaydesk/internal/platform/models"
)

func TestDeliveryLogRepository_AdvanceStatus(t *testing.T) {
	repo := NewDeliveryLogRepository(newTenantDBs(t))
	ctx := context.Background()

	entry := &models.DeliveryLog{TenantID: "org_1", WorkflowID: "wh_1", ExecutionID: "evt_1", InputData: []byte(`{"a":1}`)}
	if err := repo.Append(ctx, entry); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if entry.Status != models.StatusPending {
		t.Errorf("Status = %q, want pending", entry.Status)
	}

	if err := repo.AdvanceStatus(ctx, "org_1", entry.ID, models.StatusRetrying, 1, "status 500"); err != nil {
		t.Fatalf("AdvanceStatus(retrying) error = %v", err)
	}
	if err := repo.AdvanceStatus(ctx, "org_1", entry.ID, models.StatusError, 3, "status 500"); err != nil {
		t.Fatalf("AdvanceStatus(error) error = %v", err)
	}

	err := repo.AdvanceStatus(ctx, "org_1", entry.ID, models.StatusSuccess, 0, "")
	if !errors.Is(err, ErrLogFinalized) {
		t.Fatalf("AdvanceStatus() on terminal row error = %v, want ErrLogFinalized", err)
	}

	got, err := repo.GetByID(ctx, "org_1", entry.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID() = %v, %v", got, err)
	}
	if got.Status != models.StatusError || got.RetriesCount != 3 || got.ErrorMessage != "status 500" {
		t.Errorf("GetByID() = %+v", got)
	}
	if string(got.InputData) != `{"a":1}` {
		t.Errorf("InputData = %s", got.InputData)
	}

	if err := repo.AdvanceStatus(ctx, "org_1", "log_missing", models.StatusSuccess, 0, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("AdvanceStatus(missing) error = %v, want ErrNotFound", err)
	}
}

func TestDeliveryLogRepository_ListStale(t *testing.T) {
	dbs := newTenantDBs(t)
	repo := NewDeliveryLogRepository(dbs)
	ctx := context.Background()

	pending := &models.DeliveryLog{TenantID: "org_1", ExecutionID: "e1"}
	done := &models.DeliveryLog{TenantID: "org_1", ExecutionID: "e2"}
	for _, e := range []*models.DeliveryLog{pending, done} {
		if err := repo.Append(ctx, e); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
	if err := repo.AdvanceStatus(ctx, "org_1", done.ID, models.StatusSuccess, 0, ""); err != nil {
		t.Fatalf("AdvanceStatus() error = %v", err)
	}
	if _, err := dbs.db.Exec(`UPDATE delivery_logs SET updated_at = 10`); err != nil {
		t.Fatal(err)
	}

	stale, err := repo.ListStale(ctx, "org_1", 100)
	if err != nil {
		t.Fatalf("ListStale() error = %v", err)
	}
	if len(stale) != 1 || stale[0].ID != pending.ID {
		t.Errorf("ListStale() = %+v", stale)
	}

	recent, err := repo.List(ctx, "org_1", 10, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(recent) != 2 {
		t.Errorf("List() returned %d logs, want 2", len(recent))
	}
}
