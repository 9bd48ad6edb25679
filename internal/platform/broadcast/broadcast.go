// Package broadcast fans endpoint disable/delete notices out to every
// process that may hold in-flight deliveries for that endpoint.
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// EndpointChange says an endpoint stopped accepting deliveries.
type EndpointChange struct {
	TenantID   string `json:"tenant_id"`
	EndpointID string `json:"endpoint_id"`
	Reason     string `json:"reason"`
}

// Canceller stops in-flight deliveries for one endpoint.
type Canceller interface {
	CancelEndpoint(endpointID, reason string) int
}

// Broadcaster announces endpoint changes.
type Broadcaster interface {
	EndpointChanged(ctx context.Context, change EndpointChange) error
}

// Local cancels in this process only.
type Local struct {
	canceller Canceller
}

func NewLocal(c Canceller) *Local {
	return &Local{canceller: c}
}

func (l *Local) EndpointChanged(_ context.Context, change EndpointChange) error {
	l.canceller.CancelEndpoint(change.EndpointID, change.Reason)
	return nil
}

// Redis publishes changes on a pub/sub channel. Every process running
// Subscribe cancels locally, the publisher included.
type Redis struct {
	client    *redis.Client
	channel   string
	canceller Canceller
}

func NewRedis(client *redis.Client, channel string, c Canceller) *Redis {
	return &Redis{client: client, channel: channel, canceller: c}
}

func (r *Redis) EndpointChanged(ctx context.Context, change EndpointChange) error {
	// Cancel here first so a lost publish never leaves local retries running.
	r.canceller.CancelEndpoint(change.EndpointID, change.Reason)

	data, err := Encode(change)
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		return fmt.Errorf("publish endpoint change: %w", err)
	}
	return nil
}

// Subscribe applies changes published by any process until ctx is done.
func (r *Redis) Subscribe(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	log.Info().Str("channel", r.channel).Msg("listening for endpoint changes")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.apply(msg.Payload)
		}
	}
}

func (r *Redis) apply(payload string) {
	change, err := Decode(payload)
	if err != nil {
		log.Warn().Err(err).Msg("dropping malformed endpoint change")
		return
	}
	r.canceller.CancelEndpoint(change.EndpointID, change.Reason)
}

func Encode(change EndpointChange) (string, error) {
	data, err := json.Marshal(change)
	if err != nil {
		return "", fmt.Errorf("encode endpoint change: %w", err)
	}
	return string(data), nil
}

func Decode(payload string) (EndpointChange, error) {
	var change EndpointChange
	if err := json.Unmarshal([]byte(payload), &change); err != nil {
		return change, fmt.Errorf("decode endpoint change: %w", err)
	}
	if change.EndpointID == "" {
		return change, fmt.Errorf("decode endpoint change: missing endpoint_id")
	}
	return change, nil
}
