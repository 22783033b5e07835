package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/learnpalm/practice/internal/config"
	"github.com/learnpalm/practice/internal/dedupe"
	"github.com/learnpalm/practice/internal/elasticsearch"
	"github.com/learnpalm/practice/internal/logger"
	"github.com/learnpalm/practice/internal/problems"
	"github.com/learnpalm/practice/internal/processing"
)

// rawProblem is one ingest message. The target partition is taken from
// Partition, or resolved from Skill (or the document's own skill).
type rawProblem struct {
	Partition string         `json:"partition"`
	Skill     string         `json:"skill"`
	Timestamp string         `json:"timestamp"`
	Document  map[string]any `json:"document"`
}

type documentIndexer interface {
	PartitionIndex(partition string) string
	IndexDocument(ctx context.Context, index string, doc elasticsearch.Document) error
}

func main() {
	log := logger.New("worker")
	if err := config.LoadDotEnv(); err != nil {
		log.Error("load .env", slog.Any("err", err))
		os.Exit(1)
	}
	cfg, err := config.LoadWorker()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	esClient, err := elasticsearch.New(elasticsearch.Config{
		Addr:        cfg.ElasticsearchAddr,
		IndexPrefix: cfg.IndexPrefix,
	}, log)
	if err != nil {
		log.Error("init elasticsearch", slog.Any("err", err))
		os.Exit(1)
	}

	cache := dedupe.NewCache(cfg.DedupeCapacity, cfg.DedupeTTL)
	resolver := problems.NewResolver("", problems.DefaultSkills)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.KafkaBrokers,
		Topic:          cfg.KafkaTopic,
		GroupID:        cfg.KafkaConsumer,
		QueueCapacity:  cfg.BatchSize,
		MinBytes:       1e3,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit only
	})
	defer reader.Close()

	dlqWriter := kafka.NewWriter(kafka.WriterConfig{
		Brokers:     cfg.KafkaBrokers,
		Topic:       cfg.KafkaTopic + "_dlq",
		MaxAttempts: 3,
	})
	defer dlqWriter.Close()

	log.Info("worker started",
		slog.String("topic", cfg.KafkaTopic),
		slog.String("group", cfg.KafkaConsumer),
		slog.String("dlq_topic", cfg.KafkaTopic+"_dlq"),
		slog.String("elasticsearch", config.RedactAddr(cfg.ElasticsearchAddr)),
	)

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Info("context canceled, stopping")
				return
			}
			log.Error("fetch message", slog.Any("err", err))
			continue
		}

		if err := processMessage(ctx, log, esClient, resolver, cache, msg); err != nil {
			log.Warn("process message failed, sending to DLQ",
				slog.Any("err", err),
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
			)

			if !sendToDLQ(ctx, log, dlqWriter, msg, err) {
				log.Error("DLQ write exhausted retries, message may be lost if later messages commit",
					slog.Int("partition", msg.Partition),
					slog.Int64("offset", msg.Offset),
				)
				continue
			}
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Error("commit message", slog.Any("err", err))
		}
	}
}

// sendToDLQ forwards a failed message with its error context, retrying with
// exponential backoff. It reports whether the write succeeded.
func sendToDLQ(ctx context.Context, log *slog.Logger, w *kafka.Writer, msg kafka.Message, cause error) bool {
	dlqMsg := kafka.Message{
		Key:   msg.Key,
		Value: msg.Value,
		Headers: append(msg.Headers,
			kafka.Header{Key: "original_partition", Value: []byte(fmt.Sprintf("%d", msg.Partition))},
			kafka.Header{Key: "original_offset", Value: []byte(fmt.Sprintf("%d", msg.Offset))},
			kafka.Header{Key: "error", Value: []byte(cause.Error())},
			kafka.Header{Key: "timestamp", Value: []byte(time.Now().UTC().Format(time.RFC3339))},
		),
	}

	for attempt := range 5 {
		dlqErr := w.WriteMessages(ctx, dlqMsg)
		if dlqErr == nil {
			log.Info("message sent to DLQ",
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
				slog.Int("attempt", attempt+1),
			)
			return true
		}

		backoff := time.Duration(1<<uint(attempt)) * time.Second
		log.Warn("DLQ write failed, retrying",
			slog.Any("err", dlqErr),
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", backoff),
		)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return false
		}
	}
	return false
}

func processMessage(ctx context.Context, log *slog.Logger, idx documentIndexer, resolver *problems.Resolver, cache *dedupe.Cache, msg kafka.Message) error {
	var payload rawProblem
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		return err
	}

	if err := processing.Validate(payload.Document); err != nil {
		return err
	}

	partition, err := targetPartition(resolver, payload)
	if err != nil {
		return err
	}

	id := processing.DocumentID(payload.Document)
	if id == "" {
		id = uuid.NewString()
	}

	// Dedupe per partition: the same document may legitimately live in two.
	key := partition + "/" + id
	if cache.IsSeen(key) {
		log.Debug("duplicate problem document", slog.String("id", id), slog.String("partition", partition))
		return nil
	}

	ts := processing.ParseTimestamp(payload.Timestamp)
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	doc := elasticsearch.Document{ID: id, Source: processing.Stamp(payload.Document, ts)}
	if err := idx.IndexDocument(ctx, idx.PartitionIndex(partition), doc); err != nil {
		return err
	}

	cache.MarkSeen(key)
	log.Info("indexed problem document", slog.String("id", id), slog.String("partition", partition))
	return nil
}

// targetPartition picks where a document is written. Writes never fan out:
// an unknown skill is an error.
func targetPartition(resolver *problems.Resolver, payload rawProblem) (string, error) {
	if p := strings.TrimSpace(payload.Partition); p != "" {
		return p, nil
	}

	skill := payload.Skill
	if strings.TrimSpace(skill) == "" {
		skill, _ = payload.Document["skill"].(string)
	}
	if p, ok := resolver.Lookup(skill); ok {
		return p, nil
	}
	return "", fmt.Errorf("no partition for skill %q", skill)
}
