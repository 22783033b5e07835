package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/learnpalm/practice/internal/config"
	"github.com/learnpalm/practice/internal/elasticsearch"
	"github.com/learnpalm/practice/internal/logger"
	"github.com/learnpalm/practice/internal/processing"
)

type bulkIndexer interface {
	PartitionIndex(partition string) string
	CollectionIndex(collection string) string
	BulkIndex(ctx context.Context, index string, docs []elasticsearch.Document, refresh bool) (int, error)
}

func main() {
	log := logger.New("seed")
	if err := config.LoadDotEnv(); err != nil {
		log.Error("load .env", slog.Any("err", err))
		os.Exit(1)
	}
	cfg, err := config.LoadSeed()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	fixtures, err := loadFixtures(cfg.Dir)
	if err != nil {
		log.Error("load fixtures", slog.Any("err", err), slog.String("dir", cfg.Dir))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	esClient, err := connect(ctx, log, cfg)
	if err != nil {
		log.Error("failed to connect to elasticsearch after retries", slog.Any("err", err))
		os.Exit(1)
	}
	log.Info("connected to elasticsearch", slog.String("addr", config.RedactAddr(cfg.ElasticsearchAddr)))

	total, err := seed(ctx, log, esClient, fixtures, cfg.Refresh)
	if err != nil {
		log.Error("seed failed", slog.Any("err", err), slog.Int("indexed", total))
		os.Exit(1)
	}
	log.Info("seed completed", slog.Int("fixtures", len(fixtures)), slog.Int("indexed", total))
}

// connect waits for the cluster with capped exponential backoff.
func connect(ctx context.Context, log *slog.Logger, cfg *config.Seed) (*elasticsearch.Client, error) {
	retryDelay := 2 * time.Second
	var lastErr error

	for i := 0; i < cfg.MaxRetries; i++ {
		esClient, err := elasticsearch.New(elasticsearch.Config{
			Addr:        cfg.ElasticsearchAddr,
			IndexPrefix: cfg.IndexPrefix,
		}, log)
		if err != nil {
			lastErr = err
			log.Warn("failed to create elasticsearch client, retrying",
				slog.Any("err", err),
				slog.Int("attempt", i+1),
				slog.Int("max_retries", cfg.MaxRetries),
			)
		} else {
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			lastErr = esClient.Ping(pingCtx)
			cancel()
			if lastErr == nil {
				return esClient, nil
			}
			log.Warn("elasticsearch ping failed, retrying",
				slog.Any("err", lastErr),
				slog.Int("attempt", i+1),
				slog.Int("max_retries", cfg.MaxRetries),
				slog.Duration("retry_in", retryDelay),
			)
		}

		select {
		case <-time.After(retryDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		retryDelay *= 2
		if retryDelay > 30*time.Second {
			retryDelay = 30 * time.Second
		}
	}

	if lastErr == nil {
		lastErr = errors.New("no connection attempts made")
	}
	return nil, lastErr
}

// seed writes every fixture into its index and returns the number of
// documents the store accepted.
func seed(ctx context.Context, log *slog.Logger, idx bulkIndexer, fixtures []fixture, refresh bool) (int, error) {
	total := 0
	for _, f := range fixtures {
		index := idx.CollectionIndex(f.Collection)
		if f.Partition != "" {
			index = idx.PartitionIndex(f.Partition)
		}

		docs := documents(log, f)
		n, err := idx.BulkIndex(ctx, index, docs, refresh)
		total += n
		if err != nil {
			return total, err
		}
		log.Info("fixture indexed",
			slog.String("file", f.path),
			slog.String("target", f.target()),
			slog.String("index", index),
			slog.Int("documents", n),
		)
	}
	return total, nil
}

// documents assigns store ids. Problem documents that would not yield a
// usable question are skipped.
func documents(log *slog.Logger, f fixture) []elasticsearch.Document {
	out := make([]elasticsearch.Document, 0, len(f.Documents))
	for i, doc := range f.Documents {
		if f.Partition != "" {
			if err := processing.Validate(doc); err != nil {
				log.Warn("skipping fixture document",
					slog.String("file", f.path),
					slog.Int("position", i),
					slog.Any("err", err),
				)
				continue
			}
		}

		id := processing.DocumentID(doc)
		if id == "" {
			id = uuid.NewString()
		}
		out = append(out, elasticsearch.Document{ID: id, Source: doc})
	}
	return out
}
