// Package ingress is the message-consumer boundary: it pulls post
// lifecycle events off the durable log, hands each one to the fan-out
// writer, and only advances the consumer offset once the event has been
// handled or dead-lettered.
package ingress

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sethvargo/go-retry"

	feederrs "github.com/Hamdane-yassine/you-scout-feedgen/internal/errors"
	"github.com/Hamdane-yassine/you-scout-feedgen/internal/feedgen"
)

// Handler takes one decoded event. Delivery is at-least-once, so both
// methods must tolerate seeing the same post more than once.
type Handler interface {
	Created(ctx context.Context, ev feedgen.PostEvent) error
	Deleted(ctx context.Context, ev feedgen.PostEvent) error
}

// The parts of [kafka.Reader] and [kafka.Writer] the consumer relies on.
type (
	fetcher interface {
		FetchMessage(ctx context.Context) (kafka.Message, error)
		CommitMessages(ctx context.Context, msgs ...kafka.Message) error
		Close() error
	}

	deadLetterer interface {
		WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	}
)

type (
	Consumer struct {
		reader  fetcher
		dlq     deadLetterer
		handler Handler

		maxAttempts uint64
		backoffBase time.Duration
	}

	Config struct {
		Brokers         []string
		Topic           string
		GroupID         string
		DeadLetterTopic string

		// How many handler attempts an event gets before being
		// dead-lettered.
		MaxAttempts uint64
	}
)

// New builds a consumer joined to the configured group. Partition
// assignment within the group gives per-author ordering, since events
// are keyed by author.
func New(cfg Config, handler Handler) *Consumer {
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 5
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  500 * time.Millisecond,
	})
	dlq := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.DeadLetterTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}

	return &Consumer{
		reader:      reader,
		dlq:         dlq,
		handler:     handler,
		maxAttempts: cfg.MaxAttempts,
		backoffBase: 500 * time.Millisecond,
	}
}

// Run fetches and handles events until the context is canceled. The
// offset for a message is committed strictly after its fan-out finishes
// or the message is routed to the dead-letter topic, so an in-flight
// event survives a shutdown and is redelivered.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("error fetching message: %w", err)
		}

		if err := c.process(ctx, msg); err != nil {
			if ctx.Err() != nil {
				// Shutting down mid-event: leave the offset alone so the
				// event is redelivered.
				return nil
			}
			if err := c.deadLetter(ctx, msg, err); err != nil {
				return err
			}
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return fmt.Errorf("error committing offset: %w", err)
		}
	}
}

// Handles one delivery: decode, then dispatch with backoff on transient
// failures. A message that cannot be decoded is a poison pill and comes
// straight back for dead-lettering.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) error {
	ev, err := decodeEvent(msg.Value)
	if err != nil {
		return err
	}

	backoff := retry.WithMaxRetries(c.maxAttempts-1, retry.NewExponential(c.backoffBase))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.dispatch(ctx, ev)
		if err == nil {
			return nil
		}
		if feederrs.Transient(err) {
			slog.WarnContext(ctx, "retrying post event",
				"post_id", ev.PostID,
				"kind", ev.Kind,
				"error", err,
			)
			return retry.RetryableError(err)
		}

		return err
	})
}

func (c *Consumer) dispatch(ctx context.Context, ev feedgen.PostEvent) error {
	switch ev.Kind {
	case feedgen.EventCreated:
		return c.handler.Created(ctx, ev)
	case feedgen.EventDeleted:
		return c.handler.Deleted(ctx, ev)
	}

	return fmt.Errorf("no handler for event kind %q", ev.Kind)
}

// Pushes an exhausted or undecodable message onto the dead-letter topic,
// tagged with why it ended up there.
func (c *Consumer) deadLetter(ctx context.Context, msg kafka.Message, procErr error) error {
	slog.ErrorContext(ctx, "dead-lettering post event",
		"partition", msg.Partition,
		"offset", msg.Offset,
		"error", procErr,
	)

	out := kafka.Message{
		Key:   msg.Key,
		Value: msg.Value,
		Headers: append(msg.Headers, kafka.Header{
			Key:   "x-dead-letter-reason",
			Value: []byte(procErr.Error()),
		}),
	}
	if err := c.dlq.WriteMessages(ctx, out); err != nil {
		return fmt.Errorf("error writing to dead-letter topic: %w", err)
	}

	return nil
}
