package main

import (
	"context"
	"log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/vbonduro/shelfinv/internal/config"
	"github.com/vbonduro/shelfinv/internal/db"
	"github.com/vbonduro/shelfinv/internal/library"
	"github.com/vbonduro/shelfinv/internal/logging"
	"github.com/vbonduro/shelfinv/internal/metrics"
	"github.com/vbonduro/shelfinv/internal/resource"
	"github.com/vbonduro/shelfinv/internal/session"
	"github.com/vbonduro/shelfinv/internal/store"
	"github.com/vbonduro/shelfinv/internal/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, cleanup, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer cleanup()

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		return
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	endpoint := resource.Endpoint{BaseURL: cfg.APIURL(), StaticDir: cfg.StaticDataDir}
	client := resource.NewClient(endpoint, logger, m)
	if client.Static() {
		logger.Info("serving read-only data from static files", "dir", cfg.StaticDataDir)
	} else {
		logger.Info("using collection server", "url", endpoint.BaseURL, "mock", cfg.UseMock)
	}

	sess := session.New(store.NewSessionStore(database), client, logger)
	if err := sess.Hydrate(context.Background()); err != nil {
		logger.Error("failed to restore session", "error", err)
		return
	}

	server, err := web.NewServer(library.NewLoader(client, logger, m), client, sess, m, web.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		ViewCacheSize:  cfg.ViewCacheSize,
		Gatherer:       reg,
	}, logger)
	if err != nil {
		logger.Error("failed to create server", "error", err)
		return
	}

	if err := server.ListenAndServe(cfg.ListenAddr); err != nil {
		logger.Error("server error", "error", err)
	}
}
