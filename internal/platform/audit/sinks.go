package audit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"relaydesk/internal/engine/webhooks"
)

// Dispatcher is the part of the webhook dispatcher a sink drives.
type Dispatcher interface {
	Dispatch(ctx context.Context, tenantID, entityType, event, entityID string, payload interface{}) ([]webhooks.DeliveryOutcome, error)
}

// DirectSink dispatches mutations in-process. Each dispatch runs in its own
// goroutine, detached from the caller's cancellation and bounded by timeout.
type DirectSink struct {
	dispatcher Dispatcher
	timeout    time.Duration
	wg         sync.WaitGroup
}

func NewDirectSink(d Dispatcher, timeout time.Duration) *DirectSink {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &DirectSink{dispatcher: d, timeout: timeout}
}

func (s *DirectSink) Publish(ctx context.Context, m *Mutation) error {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		Apply(dctx, s.dispatcher, m)
	}()
	return nil
}

// Wait blocks until every dispatch started by Publish has returned.
func (s *DirectSink) Wait() {
	s.wg.Wait()
}

// Apply runs one mutation through the dispatcher and logs the outcome.
func Apply(ctx context.Context, d Dispatcher, m *Mutation) error {
	outcomes, err := d.Dispatch(ctx, m.TenantID, m.EntityType, m.Event, m.EntityID, m.Payload)
	if err != nil {
		log.Warn().Err(err).Str("mutation_id", m.ID).Str("tenant_id", m.TenantID).Msg("dispatch rejected")
		return err
	}
	for _, o := range outcomes {
		log.Debug().
			Str("mutation_id", m.ID).
			Str("endpoint_id", o.EndpointID).
			Str("delivery_id", o.DeliveryLogID).
			Str("status", o.Status).
			Int("attempts", o.Attempts).
			Msg("delivery finished")
	}
	return nil
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes mutations to a topic so worker processes dispatch
// them. Messages are keyed by tenant and entity, keeping one entity's
// mutations in order.
type KafkaSink struct {
	writer messageWriter
	topic  string
}

func NewKafkaSink(brokers, topic string) (*KafkaSink, error) {
	list := ParseBrokers(brokers)
	if len(list) == 0 {
		return nil, fmt.Errorf("brokers cannot be empty")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic cannot be empty")
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(list...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
	}
	log.Info().Strs("brokers", list).Str("topic", topic).Msg("kafka mutation sink configured")

	return &KafkaSink{writer: w, topic: topic}, nil
}

func (s *KafkaSink) Publish(ctx context.Context, m *Mutation) error {
	value, err := encodeJSON(m)
	if err != nil {
		return fmt.Errorf("marshal mutation: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(m.TenantID + ":" + m.EntityType + ":" + m.EntityID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "entity_type", Value: []byte(m.EntityType)},
			{Key: "event", Value: []byte(m.Event)},
		},
		Time: time.Unix(m.OccurredAt, 0),
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write to %s: %w", s.topic, err)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

// ParseBrokers splits a comma-separated broker list, dropping blanks.
func ParseBrokers(brokers string) []string {
	var out []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
