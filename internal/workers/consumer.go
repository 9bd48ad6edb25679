package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"relaydesk/internal/platform/audit"
)

// Handler processes one message. Returned errors are logged. The offset is
// committed when the message is handed to a handler, since every outcome is
// recorded in the delivery log or is not retryable.
type Handler func(ctx context.Context, msg kafka.Message) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type ConsumerOptions struct {
	// Concurrency bounds the messages handled at once.
	Concurrency int
	// HandleTimeout bounds one handler call. Handlers are detached from
	// shutdown and run to completion or to this deadline.
	HandleTimeout time.Duration
}

// Consumer reads a topic as part of a consumer group and hands each message
// to a bounded pool of handlers, so a slow tenant never holds up the
// partition for the others.
type Consumer struct {
	reader  messageReader
	topic   string
	slots   chan struct{}
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewConsumer(brokers, topic, groupID string, opts ConsumerOptions) (*Consumer, error) {
	list := audit.ParseBrokers(brokers)
	if len(list) == 0 {
		return nil, fmt.Errorf("brokers cannot be empty")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic cannot be empty")
	}
	if groupID == "" {
		return nil, fmt.Errorf("groupID cannot be empty")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     list,
		Topic:       topic,
		GroupID:     groupID,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     500 * time.Millisecond,
		StartOffset: kafka.FirstOffset,
	})
	c := newConsumer(reader, topic, opts)
	log.Info().
		Strs("brokers", list).
		Str("topic", topic).
		Str("group_id", groupID).
		Int("concurrency", cap(c.slots)).
		Msg("kafka consumer configured")

	return c, nil
}

func newConsumer(reader messageReader, topic string, opts ConsumerOptions) *Consumer {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 16
	}
	if opts.HandleTimeout <= 0 {
		opts.HandleTimeout = 5 * time.Minute
	}
	return &Consumer{
		reader:  reader,
		topic:   topic,
		slots:   make(chan struct{}, opts.Concurrency),
		timeout: opts.HandleTimeout,
	}
}

// Run blocks until ctx is done or the reader fails, then waits for the
// handlers already started.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	defer c.wg.Wait()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("fetch from %s: %w", c.topic, err)
		}

		select {
		case c.slots <- struct{}{}:
		case <-ctx.Done():
			return nil
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			<-c.slots
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("commit %s offset %d: %w", c.topic, msg.Offset, err)
		}

		c.wg.Add(1)
		go c.handle(ctx, handle, msg)
	}
}

func (c *Consumer) handle(ctx context.Context, handle Handler, msg kafka.Message) {
	defer c.wg.Done()
	defer func() { <-c.slots }()

	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	if err := handle(hctx, msg); err != nil {
		log.Warn().Err(err).
			Str("topic", c.topic).
			Int("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("message handling failed")
	}
}

func (c *Consumer) Close() error {
	log.Info().Str("topic", c.topic).Msg("closing kafka consumer")
	return c.reader.Close()
}
