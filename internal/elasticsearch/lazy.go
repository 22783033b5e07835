package elasticsearch

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/learnpalm/practice/internal/models"
)

// Lazy hands out one process-wide Client, created and pinged on first use.
// A failed first use is not remembered, so the next call tries again. The
// lock is never held across network calls. The handle is never closed
// here; its lifetime is the process.
type Lazy struct {
	cfg         Config
	pingTimeout time.Duration
	log         *slog.Logger
	connect     func(Config, *slog.Logger) (*Client, error)

	mu     sync.Mutex
	client *Client
}

// NewLazy prepares a lazily connected client. Nothing is dialed yet.
func NewLazy(cfg Config, pingTimeout time.Duration, logger *slog.Logger) *Lazy {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if pingTimeout <= 0 {
		pingTimeout = 5 * time.Second
	}
	return &Lazy{cfg: cfg, pingTimeout: pingTimeout, log: logger, connect: New}
}

// Client returns the shared client, connecting on first use. Concurrent
// first uses may each dial; the first to succeed is kept and the others
// adopt it.
func (l *Lazy) Client(ctx context.Context) (*Client, error) {
	l.mu.Lock()
	c := l.client
	l.mu.Unlock()
	if c != nil {
		return c, nil
	}

	c, err := l.connect(l.cfg, l.log)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, l.pingTimeout)
	defer cancel()
	if err := c.Ping(pingCtx); err != nil {
		l.log.Warn("elasticsearch not reachable", slog.Any("err", err))
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.client == nil {
		l.log.Info("connected to elasticsearch")
		l.client = c
	}
	return l.client, nil
}

// ListDocuments implements the partition reader on the shared client.
func (l *Lazy) ListDocuments(ctx context.Context, partition string) ([]models.RawDocument, error) {
	c, err := l.Client(ctx)
	if err != nil {
		return nil, err
	}
	return c.ListDocuments(ctx, partition)
}

func (l *Lazy) Get(ctx context.Context, collection, id string) (map[string]any, error) {
	c, err := l.Client(ctx)
	if err != nil {
		return nil, err
	}
	return c.Get(ctx, collection, id)
}

func (l *Lazy) First(ctx context.Context, collection string) (map[string]any, error) {
	c, err := l.Client(ctx)
	if err != nil {
		return nil, err
	}
	return c.First(ctx, collection)
}

func (l *Lazy) All(ctx context.Context, collection string) ([]map[string]any, error) {
	c, err := l.Client(ctx)
	if err != nil {
		return nil, err
	}
	return c.All(ctx, collection)
}

func (l *Lazy) Health(ctx context.Context) error {
	c, err := l.Client(ctx)
	if err != nil {
		return err
	}
	return c.Health(ctx)
}
