package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/learnpalm/practice/internal/config"
	"github.com/learnpalm/practice/internal/content"
	"github.com/learnpalm/practice/internal/elasticsearch"
	"github.com/learnpalm/practice/internal/logger"
	"github.com/learnpalm/practice/internal/problems"
)

func main() {
	log := logger.New("api")
	if err := config.LoadDotEnv(); err != nil {
		log.Error("load .env", slog.Any("err", err))
		os.Exit(1)
	}
	cfg, err := config.LoadAPI()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	store := elasticsearch.NewLazy(elasticsearch.Config{
		Addr:        cfg.ElasticsearchAddr,
		IndexPrefix: cfg.IndexPrefix,
		PageSize:    cfg.PageSize,
	}, 5*time.Second, log)

	resolver := problems.NewResolver(cfg.SharedPartition, problems.DefaultSkills)
	pipeline := problems.NewPipeline(resolver, store, problems.Options{
		Timeout:     cfg.StoreTimeout,
		Concurrency: cfg.ReadConcurrency,
		Logger:      log,
	})

	srv := &server{
		log:      log,
		problems: pipeline,
		content:  content.NewService(store),
		health:   store,
	}

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.StoreTimeout + 5*time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	go func() {
		log.Info("api server starting",
			slog.String("addr", cfg.BindAddr),
			slog.String("elasticsearch", config.RedactAddr(cfg.ElasticsearchAddr)),
			slog.String("shared_partition", cfg.SharedPartition),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", slog.Any("err", err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", slog.Any("err", err))
	}
}
