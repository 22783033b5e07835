package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/learnpalm/practice/internal/models"
)

const (
	defaultPageSize = 500
	scrollTTL       = time.Minute
)

// Config describes how to reach the cluster and name its indices.
type Config struct {
	Addr        string
	IndexPrefix string
	// PageSize is the scroll batch used when reading whole indices.
	PageSize int
}

// Client wraps go-elasticsearch with helpers tailored to this project.
type Client struct {
	es       *elasticsearch.Client
	prefix   string
	pageSize int
	log      *slog.Logger
}

// Document is a source document together with the id it is stored under.
type Document struct {
	ID     string
	Source map[string]any
}

// New instantiates the Elasticsearch client. No request is made.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.Addr},
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}

	return &Client{
		es:       es,
		prefix:   Slug(cfg.IndexPrefix),
		pageSize: cfg.PageSize,
		log:      logger,
	}, nil
}

// Slug lower-cases s and collapses anything outside [a-z0-9] into dashes,
// producing a valid index name fragment.
func Slug(s string) string {
	return models.Slug(s)
}

// PartitionIndex returns the index backing a question partition.
func (c *Client) PartitionIndex(partition string) string {
	return c.join("problems", Slug(partition))
}

// CollectionIndex returns the index backing a content collection
// such as lessons or glossary.
func (c *Client) CollectionIndex(collection string) string {
	return c.join(Slug(collection))
}

func (c *Client) join(parts ...string) string {
	if c.prefix != "" {
		parts = append([]string{c.prefix}, parts...)
	}
	return strings.Join(parts, "-")
}

// Ping checks if Elasticsearch is available.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping elasticsearch: %w: %w", models.ErrStoreUnavailable, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping failed: %s: %w", res.Status(), models.ErrStoreUnavailable)
	}

	return nil
}

// Health checks cluster health.
func (c *Client) Health(ctx context.Context) error {
	res, err := c.es.Cluster.Health(c.es.Cluster.Health.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("cluster health: %w: %w", models.ErrStoreUnavailable, err)
	}
	defer res.Body.Close()
	if res.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(res.Body)
		return fmt.Errorf("cluster health bad: %s: %w", strings.TrimSpace(string(data)), models.ErrStoreUnavailable)
	}
	return nil
}

// ListDocuments returns every document of a question partition. A missing
// index yields no documents.
func (c *Client) ListDocuments(ctx context.Context, partition string) ([]models.RawDocument, error) {
	docs, err := c.scan(ctx, c.PartitionIndex(partition))
	if err != nil {
		return nil, err
	}
	out := make([]models.RawDocument, 0, len(docs))
	for _, d := range docs {
		out = append(out, models.NewRawDocument(d.ID, d.Source))
	}
	return out, nil
}

// All returns every document of a content collection.
func (c *Client) All(ctx context.Context, collection string) ([]map[string]any, error) {
	docs, err := c.scan(ctx, c.CollectionIndex(collection))
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Source)
	}
	return out, nil
}

// Get loads one document of a collection by id.
func (c *Client) Get(ctx context.Context, collection, id string) (map[string]any, error) {
	index := c.CollectionIndex(collection)
	res, err := c.es.Get(index, id, c.es.Get.WithContext(ctx))
	if err != nil {
		return nil, unavailable("get document", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, models.ErrNotFound)
	}
	if err := responseError("get document", res); err != nil {
		return nil, err
	}

	var parsed struct {
		Found  bool           `json:"found"`
		Source map[string]any `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode get response: %w", err)
	}
	if !parsed.Found {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, models.ErrNotFound)
	}
	return parsed.Source, nil
}

// First returns the first document of a singleton collection such as the
// taxonomy or the glossary.
func (c *Client) First(ctx context.Context, collection string) (map[string]any, error) {
	page, err := c.search(ctx, c.CollectionIndex(collection), 1, false)
	if err != nil {
		return nil, err
	}
	if len(page.docs) == 0 {
		return nil, fmt.Errorf("%s: %w", collection, models.ErrNotFound)
	}
	return page.docs[0].Source, nil
}

// IndexDocument writes one document into index.
func (c *Client) IndexDocument(ctx context.Context, index string, doc Document) error {
	payload, err := json.Marshal(doc.Source)
	if err != nil {
		return fmt.Errorf("marshal doc: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      index,
		DocumentID: doc.ID,
		Body:       bytes.NewReader(payload),
		Refresh:    "false",
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return unavailable("index doc", err)
	}
	defer res.Body.Close()

	return responseError("index doc", res)
}

// BulkIndex writes docs into index in one request and returns how many
// were accepted.
func (c *Client) BulkIndex(ctx context.Context, index string, docs []Document, refresh bool) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, doc := range docs {
		meta := map[string]any{"index": map[string]any{"_index": index, "_id": doc.ID}}
		if err := enc.Encode(meta); err != nil {
			return 0, fmt.Errorf("marshal bulk meta: %w", err)
		}
		if err := enc.Encode(doc.Source); err != nil {
			return 0, fmt.Errorf("marshal bulk doc %q: %w", doc.ID, err)
		}
	}

	opts := []func(*esapi.BulkRequest){c.es.Bulk.WithContext(ctx)}
	if refresh {
		opts = append(opts, c.es.Bulk.WithRefresh("true"))
	}

	res, err := c.es.Bulk(&buf, opts...)
	if err != nil {
		return 0, unavailable("bulk index", err)
	}
	defer res.Body.Close()

	if err := responseError("bulk index", res); err != nil {
		return 0, err
	}

	var parsed struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			Status int `json:"status"`
			Error  struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return 0, fmt.Errorf("decode bulk response: %w", err)
	}

	accepted := 0
	var firstErr error
	for _, item := range parsed.Items {
		for _, result := range item {
			if result.Status >= http.StatusBadRequest {
				if firstErr == nil {
					firstErr = fmt.Errorf("bulk item failed: %s: %s", result.Error.Type, result.Error.Reason)
				}
				continue
			}
			accepted++
		}
	}
	return accepted, firstErr
}

type page struct {
	scrollID string
	docs     []Document
}

// scan reads a whole index with the scroll API in index order.
func (c *Client) scan(ctx context.Context, index string) ([]Document, error) {
	first, err := c.search(ctx, index, c.pageSize, true)
	if err != nil {
		return nil, err
	}

	docs := first.docs
	scrollID := first.scrollID
	defer func() { c.clearScroll(scrollID) }()

	for len(first.docs) == c.pageSize && scrollID != "" {
		next, err := c.scroll(ctx, scrollID)
		if err != nil {
			return nil, err
		}
		if next.scrollID != "" {
			scrollID = next.scrollID
		}
		docs = append(docs, next.docs...)
		if len(next.docs) < c.pageSize {
			break
		}
	}

	c.log.Debug("index scanned", slog.String("index", index), slog.Int("docs", len(docs)))
	return docs, nil
}

func (c *Client) search(ctx context.Context, index string, size int, scroll bool) (*page, error) {
	body := map[string]any{
		"query": map[string]any{"match_all": map[string]any{}},
		"sort":  []string{"_doc"},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	opts := []func(*esapi.SearchRequest){
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(index),
		c.es.Search.WithBody(bytes.NewReader(payload)),
		c.es.Search.WithSize(size),
	}
	if scroll {
		opts = append(opts, c.es.Search.WithScroll(scrollTTL))
	}

	res, err := c.es.Search(opts...)
	if err != nil {
		return nil, unavailable("search", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return &page{}, nil
	}
	if err := responseError("search", res); err != nil {
		return nil, err
	}
	return decodePage(res.Body)
}

func (c *Client) scroll(ctx context.Context, scrollID string) (*page, error) {
	res, err := c.es.Scroll(
		c.es.Scroll.WithContext(ctx),
		c.es.Scroll.WithScrollID(scrollID),
		c.es.Scroll.WithScroll(scrollTTL),
	)
	if err != nil {
		return nil, unavailable("scroll", err)
	}
	defer res.Body.Close()

	if err := responseError("scroll", res); err != nil {
		return nil, err
	}
	return decodePage(res.Body)
}

func (c *Client) clearScroll(scrollID string) {
	if scrollID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	res, err := c.es.ClearScroll(
		c.es.ClearScroll.WithContext(ctx),
		c.es.ClearScroll.WithScrollID(scrollID),
	)
	if err != nil {
		c.log.Debug("clear scroll", slog.Any("err", err))
		return
	}
	res.Body.Close()
}

func decodePage(r io.Reader) (*page, error) {
	var parsed struct {
		ScrollID string `json:"_scroll_id"`
		Hits     struct {
			Hits []struct {
				ID     string         `json:"_id"`
				Source map[string]any `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(r).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	p := &page{scrollID: parsed.ScrollID, docs: make([]Document, 0, len(parsed.Hits.Hits))}
	for _, hit := range parsed.Hits.Hits {
		p.docs = append(p.docs, Document{ID: hit.ID, Source: hit.Source})
	}
	return p, nil
}

// responseError turns an error response into an error. Server-side
// failures are reported as the store being unavailable.
func responseError(op string, res *esapi.Response) error {
	if !res.IsError() {
		return nil
	}
	data, _ := io.ReadAll(res.Body)
	err := fmt.Errorf("%s failed: %s: %s", op, res.Status(), strings.TrimSpace(string(data)))
	if res.StatusCode >= http.StatusInternalServerError || res.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %w", models.ErrStoreUnavailable, err)
	}
	return err
}

func unavailable(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, models.ErrStoreUnavailable, err)
}
