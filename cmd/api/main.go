// Command api serves the beepnet HTTP surface (§6 External Interfaces):
// ingestion, witness confirmation, and the read endpoints. It constructs one
// bootstrap.Core at startup and passes it explicitly to every handler — no
// package-level singleton, per SPEC_FULL.md §9.
package main

import (
	"context"
	"io"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ufobeep/beepnet/internal/bootstrap"
)

func main() {
	ctx := context.Background()

	cfg := bootstrap.LoadConfig()
	core, err := bootstrap.NewCore(ctx, cfg)
	if err != nil {
		stdlog.Fatalf("core init failed: %v", err)
	}
	defer core.Close()

	a := &api{core: core.Core}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(slogRequestLogger(core.Logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(30 * time.Second))

	router.Route("/v1/sightings", func(r chi.Router) {
		r.Post("/", a.ingest)
		r.Get("/", a.listSightings)
		r.Get("/{id}", a.sightingDetail)
		r.Post("/{id}/witness", a.confirmWitness)
		r.Get("/{id}/witness-status", a.witnessStatus)
		r.Post("/{id}/media", a.attachMedia)
	})

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	addr := ":" + envOr("PORT", "8080")
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		WriteTimeout:      30 * time.Second,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		ErrorLog:          stdlog.New(io.Discard, "", 0),
	}

	go func() {
		core.Logger.Info("listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			core.Logger.Error("server stopped unexpectedly", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	core.Logger.Info("shutting down")
	_ = srv.Shutdown(shutdownCtx)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
