// The feed read API: serves each user their hydrated, cursor-paginated
// timeline out of the feed store.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sethvargo/go-envconfig"
	_ "golang.org/x/crypto/x509roots/fallback"
	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	"github.com/Hamdane-yassine/you-scout-feedgen/internal/api"
	"github.com/Hamdane-yassine/you-scout-feedgen/internal/feedgen"
	"github.com/Hamdane-yassine/you-scout-feedgen/internal/migrations"
	"github.com/Hamdane-yassine/you-scout-feedgen/internal/posts"
	"github.com/Hamdane-yassine/you-scout-feedgen/internal/reader"
	feedsqlite "github.com/Hamdane-yassine/you-scout-feedgen/internal/sqlite"
	"github.com/Hamdane-yassine/you-scout-feedgen/logger"
)

type config struct {
	Port     int    `env:"PORT, default=8084"`
	Database string `env:"DATABASE, required"`

	PostsBaseURL    string        `env:"POSTS_BASE_URL, required"`
	ProfilesBaseURL string        `env:"PROFILES_BASE_URL"` // optional; no picture enrichment when unset
	HydrateTimeout  time.Duration `env:"HYDRATE_TIMEOUT, default=3s"`

	CorsHeader     string `env:"CORS_HEADER, default=*"`
	AdminEndpoints bool   `env:"ADMIN_ENDPOINTS, default=false"`

	// Which format to use for logging: either text or json
	LoggerFormat string `env:"LOGGER_FORMAT, default=text"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Parse the config
	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		log.Fatalf("error parsing config: %s", err)
	}

	logger.Setup(cfg.LoggerFormat)

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("error running: %s", err)
	}
}

func run(ctx context.Context, cfg config) error {
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

	var (
		store    = feedsqlite.New(dbx)
		postsCli = posts.NewClient(cfg.PostsBaseURL, cfg.HydrateTimeout)
	)

	var profiles feedgen.ProfileHydrator
	if cfg.ProfilesBaseURL != "" {
		profiles = posts.NewClient(cfg.ProfilesBaseURL, cfg.HydrateTimeout)
	}

	s := api.NewServer(api.ServerConfig{
		Port:           cfg.Port,
		CorsHeader:     cfg.CorsHeader,
		AdminEndpoints: cfg.AdminEndpoints,
	}, reader.New(store, postsCli, profiles), store)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Start the server
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("error listening: %s", err)
		}

		return nil
	})
	g.Go(func() error {
		// Block from shutting down until the group is canceled
		<-gCtx.Done()

		downCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return s.Shutdown(downCtx)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("error running: %s", err)
	}

	return nil
}
