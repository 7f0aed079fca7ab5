package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"clinops/internal/ingest"
	"clinops/internal/platform/config"
	"clinops/internal/platform/httpserver"
	"clinops/internal/platform/logger"
	platformredis "clinops/internal/platform/redis"
	runhandler "clinops/internal/run/handler"
	runmetrics "clinops/internal/run/metrics"
	runports "clinops/internal/run/ports"
	runservice "clinops/internal/run/service"
	memorystore "clinops/internal/run/store/memory"
	postgresstore "clinops/internal/run/store/postgres"
	"clinops/internal/run/store/rankingcache"
	"clinops/pkg/platform/middleware/requestid"
	"clinops/pkg/platform/middleware/requesttime"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	var store runports.Store
	if cfg.PostgresDSN != "" {
		db, err := postgresstore.Open(cfg.PostgresDSN)
		if err != nil {
			log.Error("postgres connection failed", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		pg := postgresstore.New(db)
		if err := pg.Migrate(context.Background()); err != nil {
			log.Error("run store migration failed", "error", err)
			os.Exit(1)
		}
		store = pg
		log.Info("using postgres run store")
	} else {
		store = memorystore.New()
		log.Info("using in-memory run store")
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	loader := ingest.NewLoader(cfg.DataDir, log)
	m := runmetrics.New()

	opts := []runservice.Option{
		runservice.WithLogger(log),
		runservice.WithMetrics(m),
	}
	if cache := rankingcache.New(redisClient); cache != nil {
		opts = append(opts, runservice.WithRankingCache(cache, cfg.RankingTTL))
		log.Info("ranking cache enabled", "ttl", cfg.RankingTTL)
	}

	svc, err := runservice.New(store, loader, opts...)
	if err != nil {
		log.Error("service construction failed", "error", err)
		os.Exit(1)
	}

	router := chi.NewRouter()
	router.Use(chimiddleware.Recoverer)
	router.Use(requestid.Middleware)
	router.Use(requesttime.Middleware)

	runhandler.New(svc, log).Register(router)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if redisClient != nil {
			if err := redisClient.Health(r.Context()); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
	router.Handle("/metrics", promhttp.Handler())

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting clinops server", "addr", cfg.Addr, "data_dir", cfg.DataDir)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
