package workers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"relaydesk/internal/engine/filters"
	"relaydesk/internal/platform/audit"
)

// InboundMessage is the envelope on the messages topic.
type InboundMessage struct {
	TenantID string          `json:"tenant_id"`
	Message  filters.Message `json:"message"`
}

type MessageEvaluator interface {
	Evaluate(ctx context.Context, tenantID string, msg *filters.Message) (*filters.MatchResult, error)
}

// MutationHandler feeds mutations published by an audit.KafkaSink to the
// dispatcher.
func MutationHandler(d audit.Dispatcher) Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		var m audit.Mutation
		if err := json.Unmarshal(msg.Value, &m); err != nil {
			return fmt.Errorf("decode mutation: %w", err)
		}
		if m.TenantID == "" {
			return fmt.Errorf("decode mutation: missing tenant_id")
		}
		return audit.Apply(ctx, d, &m)
	}
}

// MessageHandler evaluates inbound chat messages against tenant rules.
func MessageHandler(e MessageEvaluator) Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		var in InboundMessage
		if err := json.Unmarshal(msg.Value, &in); err != nil {
			return fmt.Errorf("decode message: %w", err)
		}
		if in.TenantID == "" {
			return fmt.Errorf("decode message: missing tenant_id")
		}

		res, err := e.Evaluate(ctx, in.TenantID, &in.Message)
		if err != nil {
			return err
		}
		if res != nil && res.Matched {
			log.Info().
				Str("tenant_id", in.TenantID).
				Str("rule_id", res.Rule.ID).
				Str("delivery_id", res.DeliveryLogID).
				Msg("inbound message matched")
		}
		return nil
	}
}
