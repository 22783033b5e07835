package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Common contains Elasticsearch parameters shared by every service.
type Common struct {
	ElasticsearchAddr string
	IndexPrefix       string
}

// API describes HTTP-layer and retrieval configuration.
type API struct {
	Common
	BindAddr string
	// SharedPartition, when set, is read for every request instead of the
	// skill's own partition.
	SharedPartition string
	StoreTimeout    time.Duration
	PageSize        int
	ReadConcurrency int
}

// Worker holds configuration for the Kafka -> Elasticsearch ingest worker.
type Worker struct {
	Common
	KafkaBrokers   []string
	KafkaTopic     string
	KafkaConsumer  string
	DedupeCapacity int
	DedupeTTL      time.Duration
	BatchSize      int
}

// Seed configures the fixture loader.
type Seed struct {
	Common
	Dir        string
	Refresh    bool
	MaxRetries int
}

// LoadDotEnv reads variables from the given .env files (default ".env")
// without overriding the environment. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

func loadCommon() Common {
	return Common{
		ElasticsearchAddr: getEnv("ELASTICSEARCH_ADDR", "http://elasticsearch:9200"),
		IndexPrefix:       getEnv("ELASTICSEARCH_INDEX_PREFIX", "sat-prep"),
	}
}

// LoadAPI builds an API config from environment variables.
func LoadAPI() (*API, error) {
	c := &API{
		Common:          loadCommon(),
		BindAddr:        getEnv("API_BIND_ADDR", "0.0.0.0:8080"),
		SharedPartition: strings.TrimSpace(os.Getenv("PROBLEMS_SHARED_PARTITION")),
		StoreTimeout:    getDuration("PROBLEMS_STORE_TIMEOUT", "10s"),
		PageSize:        getInt("PROBLEMS_PAGE_SIZE", 500),
		ReadConcurrency: getInt("PROBLEMS_READ_CONCURRENCY", 4),
	}

	if c.StoreTimeout <= 0 {
		return nil, fmt.Errorf("PROBLEMS_STORE_TIMEOUT must be positive")
	}
	if c.PageSize <= 0 {
		return nil, fmt.Errorf("PROBLEMS_PAGE_SIZE must be positive")
	}
	if c.ReadConcurrency <= 0 {
		return nil, fmt.Errorf("PROBLEMS_READ_CONCURRENCY must be positive")
	}

	return c, nil
}

// LoadWorker builds a Worker config from environment variables.
func LoadWorker() (*Worker, error) {
	c := &Worker{
		Common:         loadCommon(),
		KafkaBrokers:   splitAndTrim(getEnv("KAFKA_BROKERS", "kafka:9092")),
		KafkaTopic:     getEnv("KAFKA_TOPIC", "problems_raw"),
		KafkaConsumer:  getEnv("KAFKA_CONSUMER_GROUP", "problems-worker"),
		DedupeCapacity: getInt("WORKER_DEDUPE_CAPACITY", 20000),
		DedupeTTL:      getDuration("WORKER_DEDUPE_TTL", "24h"),
		BatchSize:      getInt("WORKER_BATCH_SIZE", 10),
	}

	if len(c.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS must contain at least one broker")
	}
	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("WORKER_BATCH_SIZE must be positive")
	}
	if c.DedupeCapacity <= 0 {
		return nil, fmt.Errorf("WORKER_DEDUPE_CAPACITY must be positive")
	}

	return c, nil
}

// LoadSeed builds a Seed config from environment variables.
func LoadSeed() (*Seed, error) {
	c := &Seed{
		Common:     loadCommon(),
		Dir:        getEnv("SEED_DIR", "./fixtures"),
		Refresh:    getBool("SEED_REFRESH", true),
		MaxRetries: getInt("SEED_MAX_RETRIES", 10),
	}

	if c.MaxRetries <= 0 {
		return nil, fmt.Errorf("SEED_MAX_RETRIES must be positive")
	}

	return c, nil
}

// RedactAddr strips credentials from a store address so it can be logged.
func RedactAddr(addr string) string {
	u, err := url.Parse(addr)
	if err != nil || u.Host == "" {
		return "<unparseable address>"
	}
	u.User = nil
	u.RawQuery = ""
	return u.Redacted()
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key, fallback string) time.Duration {
	d, err := time.ParseDuration(getEnv(key, fallback))
	if err != nil {
		fd, ferr := time.ParseDuration(fallback)
		if ferr != nil {
			panic(fmt.Sprintf("invalid fallback duration %q: %v", fallback, ferr))
		}
		return fd
	}
	return d
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
