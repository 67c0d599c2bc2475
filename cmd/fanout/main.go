// The fan-out worker: consumes post lifecycle events and replicates
// each post into its author's followers' feeds.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/oklog/run"
	"github.com/segmentio/kafka-go"
	"github.com/sethvargo/go-envconfig"
	"github.com/sethvargo/go-retry"
	_ "golang.org/x/crypto/x509roots/fallback"
	_ "modernc.org/sqlite"

	"github.com/Hamdane-yassine/you-scout-feedgen/internal/fanout"
	"github.com/Hamdane-yassine/you-scout-feedgen/internal/ingress"
	"github.com/Hamdane-yassine/you-scout-feedgen/internal/migrations"
	"github.com/Hamdane-yassine/you-scout-feedgen/internal/social"
	feedsqlite "github.com/Hamdane-yassine/you-scout-feedgen/internal/sqlite"
	"github.com/Hamdane-yassine/you-scout-feedgen/logger"
)

type config struct {
	Database string `env:"DATABASE, required"`

	KafkaBrokers    string `env:"KAFKA_BROKERS, required"` // comma-separated
	Topic           string `env:"POST_EVENTS_TOPIC, default=post-events"`
	ConsumerGroup   string `env:"CONSUMER_GROUP, default=feedgen"`
	DeadLetterTopic string `env:"DEAD_LETTER_TOPIC, default=post-events-dlq"`

	// Consumer workers run in parallel; the group assigns each a share
	// of the topic's partitions.
	Workers     int    `env:"WORKERS, default=4"`
	MaxAttempts uint64 `env:"MAX_ATTEMPTS, default=5"`

	SocialBaseURL    string        `env:"SOCIAL_BASE_URL, required"`
	FollowerPageSize int           `env:"FOLLOWER_PAGE_SIZE, default=1000"`
	FollowerTimeout  time.Duration `env:"FOLLOWER_TIMEOUT, default=5s"`

	// Which format to use for logging: either text or json
	LoggerFormat string `env:"LOGGER_FORMAT, default=text"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Parse the config
	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		log.Fatalf("error parsing config: %s", err)
	}

	logger.Setup(cfg.LoggerFormat)

	if err := runWorker(ctx, cfg); err != nil {
		log.Fatalf("error running: %s", err)
	}
}

func runWorker(ctx context.Context, cfg config) error {
	brokers := strings.Split(cfg.KafkaBrokers, ",")

	// Connect to the db
	dbx, err := sqlx.Open("sqlite", fmt.Sprintf("%s?_txlock=immediate&_journal_mode=WAL&_busy_timeout=5000", cfg.Database))
	if err != nil {
		return fmt.Errorf("error opening database: %s", err)
	}
	defer dbx.Close()

	// Migrate, always
	if err := migrations.Run(dbx); err != nil {
		return fmt.Errorf("error migrating: %s", err)
	}

	// Retry until the broker is ready
	if err := retry.Fibonacci(ctx, 1*time.Second, func(ctx context.Context) error {
		conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
		if err != nil {
			return retry.RetryableError(err)
		}
		conn.Close()

		return nil
	}); err != nil {
		return fmt.Errorf("kafka broker not reachable: %s", err)
	}

	writer := fanout.NewWriter(
		feedsqlite.New(dbx),
		social.NewClient(cfg.SocialBaseURL, cfg.FollowerTimeout),
		fanout.Config{PageSize: cfg.FollowerPageSize},
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var g run.Group
	for i := 0; i < cfg.Workers; i++ {
		c := ingress.New(ingress.Config{
			Brokers:         brokers,
			Topic:           cfg.Topic,
			GroupID:         cfg.ConsumerGroup,
			DeadLetterTopic: cfg.DeadLetterTopic,
			MaxAttempts:     cfg.MaxAttempts,
		}, writer)

		g.Add(func() error {
			return c.Run(runCtx)
		}, func(error) {
			cancel()
		})
	}
	g.Add(run.SignalHandler(runCtx, os.Interrupt, syscall.SIGTERM))

	slog.Info("consuming post events",
		"topic", cfg.Topic,
		"group", cfg.ConsumerGroup,
		"workers", cfg.Workers,
	)

	err = g.Run()
	var sigErr run.SignalError
	if errors.As(err, &sigErr) || errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}
