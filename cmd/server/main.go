package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tendant/chi-demo/app"
	"github.com/tendant/simple-files/pkg/filestore/api"
	"github.com/tendant/simple-files/pkg/filestore/config"
)

func newLogger(cfg *config.Config) *slog.Logger {
	if cfg.IsDevelopment() {
		return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.Kitchen,
		}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(config.WithEnv())
	if err != nil {
		slog.Error("Failed to load configuration", "err", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	built, err := cfg.BuildService(context.Background(), logger)
	if err != nil {
		logger.Error("Failed to build file service", "err", err)
		os.Exit(1)
	}
	defer built.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		built.Metrics,
	)

	server := app.DefaultApp()

	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)

	filesHandler := api.NewFilesHandler(built.Service, logger,
		api.WithMaxUploadSize(cfg.Upload.MaxUploadSize),
	)

	server.R.Group(func(r chi.Router) {
		r.Use(middleware.Logger)
		api.RegisterRoutes(r, filesHandler, cfg.CORSAllowedOrigins)
	})
	server.R.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server.Run()
}
