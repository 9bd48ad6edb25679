package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Mutation is one change to a tenant entity, as reported by the admin
// surface, the evaluator or an external caller.
type Mutation struct {
	ID         string          `json:"id"`
	TenantID   string          `json:"tenant_id"`
	EntityType string          `json:"entity_type"`
	Event      string          `json:"event"`
	EntityID   string          `json:"entity_id"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt int64           `json:"occurred_at"`
}

// Sink receives recorded mutations.
type Sink interface {
	Publish(ctx context.Context, m *Mutation) error
}

type Recorder struct {
	sink Sink
}

func NewRecorder(sink Sink) *Recorder {
	return &Recorder{sink: sink}
}

// Record logs a mutation and hands it to the sink. It never fails the
// caller; sink errors are logged.
func (r *Recorder) Record(ctx context.Context, tenantID, entityType, event, entityID string, payload interface{}) {
	body, err := encodeJSON(payload)
	if err != nil {
		log.Error().Err(err).Str("tenant_id", tenantID).Str("entity_type", entityType).Msg("unencodable mutation payload")
		return
	}

	m := &Mutation{
		ID:         "mut_" + uuid.New().String(),
		TenantID:   tenantID,
		EntityType: entityType,
		Event:      event,
		EntityID:   entityID,
		Payload:    body,
		OccurredAt: time.Now().Unix(),
	}

	log.Info().
		Str("mutation_id", m.ID).
		Str("tenant_id", tenantID).
		Str("entity_type", entityType).
		Str("event", event).
		Str("entity_id", entityID).
		Msg("entity mutated")

	if r.sink == nil {
		return
	}
	if err := r.sink.Publish(ctx, m); err != nil {
		log.Error().Err(err).Str("mutation_id", m.ID).Str("tenant_id", tenantID).Msg("publish mutation failed")
	}
}

// encodeJSON marshals v without HTML escaping, so payload text such as
// "<b>&" reaches webhook bodies as written.
func encodeJSON(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
