// Package api exposes the feed read API.
package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/Hamdane-yassine/you-scout-feedgen/internal/feedgen"
	"github.com/Hamdane-yassine/you-scout-feedgen/internal/reader"
	"github.com/Hamdane-yassine/you-scout-feedgen/internal/serverutil"
)

type (
	// Server handles requests for users' hydrated feed pages.
	Server struct {
		*http.Server

		feeds     *reader.Service
		store     feedgen.FeedStore
		startTime time.Time
	}

	ServerConfig struct {
		Port       int
		CorsHeader string

		// Exposes the fan-out reconciliation ledger for operators.
		AdminEndpoints bool
	}
)

func NewServer(config ServerConfig, feeds *reader.Service, store feedgen.FeedStore) *Server {
	r := serverutil.ErrRouter{Router: mux.NewRouter()}

	srvr := Server{
		feeds:     feeds,
		store:     store,
		startTime: time.Now(),
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%d", config.Port),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
			Handler: handlers.CORS(
				handlers.AllowedOrigins([]string{config.CorsHeader}),
				handlers.AllowedMethods([]string{http.MethodGet, http.MethodOptions}),
				handlers.AllowedHeaders([]string{"content-type"}),
			)(r),
		},
	}

	r.Use(serverutil.AccessLogMiddleware) // Log everything
	r.HandleFuncE("/healthz", srvr.getHealthz).Methods(http.MethodGet)
	r.HandleFuncE("/feed/{username}", srvr.getFeed).Methods(http.MethodGet)

	if config.AdminEndpoints {
		// For reconciling feed entries whose writes never landed
		r.HandleFuncE("/admin/fanout-failures", srvr.getFanoutFailures).Methods(http.MethodGet)
	}

	slog.Debug("configured feed server", "port", config.Port)

	return &srvr
}

type HealthResp struct {
	UptimeSeconds uint64 `json:"uptime_seconds"`
}

func (s *Server) getHealthz(w http.ResponseWriter, r *http.Request) error {
	return serverutil.WriteJSON(w, http.StatusOK, HealthResp{
		UptimeSeconds: uint64(time.Since(s.startTime).Seconds()),
	})
}
