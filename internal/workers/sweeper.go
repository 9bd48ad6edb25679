package workers

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"relaydesk/internal/platform/models"
	"relaydesk/internal/platform/repositories"
)

const abandonedMessage = "abandoned: delivery did not finish"

type OrganizationLister interface {
	List(ctx context.Context) ([]*models.Organization, error)
}

type StaleLogStore interface {
	ListStale(ctx context.Context, tenantID string, before int64) ([]*models.DeliveryLog, error)
	AdvanceStatus(ctx context.Context, tenantID, id, status string, retries int, errMsg string) error
}

// Sweeper closes delivery logs left pending or retrying by a process that
// stopped mid-delivery.
type Sweeper struct {
	orgs       OrganizationLister
	logs       StaleLogStore
	staleAfter time.Duration
	interval   time.Duration
	now        func() time.Time
}

func NewSweeper(orgs OrganizationLister, logs StaleLogStore, staleAfter, interval time.Duration) *Sweeper {
	if staleAfter <= 0 {
		staleAfter = 30 * time.Minute
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Sweeper{orgs: orgs, logs: logs, staleAfter: staleAfter, interval: interval, now: time.Now}
}

// Run sweeps once immediately and then on every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if n, err := s.SweepOnce(ctx); err != nil {
			log.Error().Err(err).Msg("stale delivery sweep failed")
		} else if n > 0 {
			log.Info().Int("closed", n).Msg("closed stale deliveries")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// SweepOnce walks every tenant and marks stale deliveries as errors.
// A failing tenant is logged and skipped.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	orgs, err := s.orgs.List(ctx)
	if err != nil {
		return 0, err
	}

	before := s.now().Add(-s.staleAfter).Unix()
	closed := 0
	for _, org := range orgs {
		if ctx.Err() != nil {
			return closed, ctx.Err()
		}

		stale, err := s.logs.ListStale(ctx, org.ID, before)
		if err != nil {
			log.Warn().Err(err).Str("tenant_id", org.ID).Msg("list stale deliveries")
			continue
		}

		for _, entry := range stale {
			err := s.logs.AdvanceStatus(ctx, org.ID, entry.ID, models.StatusError, entry.RetriesCount, abandonedMessage)
			switch {
			case err == nil:
				closed++
			case errors.Is(err, repositories.ErrLogFinalized):
				// Finished between the list and the update.
			default:
				log.Warn().Err(err).Str("tenant_id", org.ID).Str("delivery_id", entry.ID).Msg("close stale delivery")
			}
		}
	}
	return closed, nil
}
