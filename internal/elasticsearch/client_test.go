package elasticsearch_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/learnpalm/practice/internal/elasticsearch"
	"github.com/learnpalm/practice/internal/models"
)

type fakeCluster struct {
	t        *testing.T
	pages    map[string][][]map[string]any
	scrolled map[string]int
	pings    atomic.Int32
	status   atomic.Int32
	// pingGate, when set, holds every ping until it is closed.
	pingGate chan struct{}

	mu   sync.Mutex
	bulk string
}

func newFakeCluster(t *testing.T) *fakeCluster {
	return &fakeCluster{t: t, pages: map[string][][]map[string]any{}, scrolled: map[string]int{}}
}

func (f *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	if status := int(f.status.Load()); status != 0 {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, `{"error":"boom"}`)
		return
	}

	path := r.URL.Path
	if path == "/" && r.Method == http.MethodHead {
		f.pings.Add(1)
		if f.pingGate != nil {
			<-f.pingGate
		}
		w.WriteHeader(http.StatusOK)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case path == "/_cluster/health":
		_, _ = io.WriteString(w, `{"status":"green"}`)
	case strings.HasPrefix(path, "/_search/scroll") && r.Method == http.MethodDelete:
		_, _ = io.WriteString(w, `{"succeeded":true}`)
	case strings.HasPrefix(path, "/_search/scroll"):
		body, _ := io.ReadAll(r.Body)
		scrollID := strings.Trim(strings.TrimPrefix(path, "/_search/scroll"), "/")
		if scrollID == "" {
			scrollID = r.URL.Query().Get("scroll_id")
		}
		if scrollID == "" {
			var req struct {
				ScrollID string `json:"scroll_id"`
			}
			_ = json.Unmarshal(body, &req)
			scrollID = req.ScrollID
		}
		f.scrolled[scrollID]++
		f.writePage(w, scrollID, f.scrolled[scrollID])
	case path == "/_bulk":
		body, _ := io.ReadAll(r.Body)
		f.bulk = string(body)
		lines := strings.Count(f.bulk, "\n") / 2
		items := make([]map[string]any, 0, lines)
		for i := 0; i < lines; i++ {
			items = append(items, map[string]any{"index": map[string]any{"status": 201}})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"errors": false, "items": items})
	case strings.HasSuffix(path, "/_search"):
		index := strings.Trim(strings.TrimSuffix(path, "/_search"), "/")
		if _, ok := f.pages[index]; !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error":{"type":"index_not_found_exception"},"status":404}`)
			return
		}
		f.writePage(w, index, 0)
	case strings.Contains(path, "/_doc/"):
		parts := strings.SplitN(strings.Trim(path, "/"), "/_doc/", 2)
		for _, pg := range f.pages[parts[0]] {
			for _, doc := range pg {
				if doc["id"] == parts[1] {
					_ = json.NewEncoder(w).Encode(map[string]any{"found": true, "_id": parts[1], "_source": doc})
					return
				}
			}
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"found":false}`)
	default:
		f.t.Logf("unexpected request %s %s", r.Method, path)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{}`)
	}
}

func (f *fakeCluster) writePage(w http.ResponseWriter, index string, n int) {
	var docs []map[string]any
	if pages := f.pages[index]; n < len(pages) {
		docs = pages[n]
	}
	hits := make([]map[string]any, 0, len(docs))
	for i, doc := range docs {
		id, _ := doc["_store_id"].(string)
		if id == "" {
			id = index + "-" + string(rune('a'+n)) + string(rune('0'+i))
		}
		hits = append(hits, map[string]any{"_id": id, "_source": doc})
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"_scroll_id": index,
		"hits":       map[string]any{"hits": hits},
	})
}

func newClient(t *testing.T, f *fakeCluster, pageSize int) *elasticsearch.Client {
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	c, err := elasticsearch.New(elasticsearch.Config{Addr: srv.URL, IndexPrefix: "sat-prep", PageSize: pageSize}, nil)
	require.NoError(t, err)
	return c
}

func TestIndexNames(t *testing.T) {
	c, err := elasticsearch.New(elasticsearch.Config{Addr: "http://localhost:9200", IndexPrefix: "SAT Prep"}, nil)
	require.NoError(t, err)

	require.Equal(t, "sat-prep-problems-algebra-linear-functions", c.PartitionIndex("Algebra - Linear Functions"))
	require.Equal(t, "sat-prep-problems-problem-solving-and-data-analysis-ratios-rates-proportional-relationships-and-units",
		c.PartitionIndex("Problem-Solving and Data Analysis - Ratios, Rates, Proportional Relationships, and Units"))
	require.Equal(t, "sat-prep-lessons-metadata", c.CollectionIndex("lessons_metadata"))
}

func TestListDocumentsScrollsAllPages(t *testing.T) {
	f := newFakeCluster(t)
	f.pages["sat-prep-problems-algebra-a"] = [][]map[string]any{
		{{"id": "d1"}, {"_store_id": "s2"}},
		{{"id": "d3"}},
	}
	c := newClient(t, f, 2)

	docs, err := c.ListDocuments(context.Background(), "Algebra-A")
	require.NoError(t, err)
	require.Len(t, docs, 3)
	require.Equal(t, "d1", docs[0].ID)
	require.Equal(t, "s2", docs[1].ID)
	require.Equal(t, "d3", docs[2].ID)
}

func TestListDocumentsMissingIndexIsEmpty(t *testing.T) {
	c := newClient(t, newFakeCluster(t), 10)

	docs, err := c.ListDocuments(context.Background(), "Nope")
	require.NoError(t, err)
	require.Empty(t, docs)
}

func TestListDocumentsServerErrorIsUnavailable(t *testing.T) {
	f := newFakeCluster(t)
	f.status.Store(http.StatusInternalServerError)
	c := newClient(t, f, 10)

	_, err := c.ListDocuments(context.Background(), "Algebra-A")
	require.Error(t, err)
	require.True(t, errors.Is(err, models.ErrStoreUnavailable))
}

func TestListDocumentsUnreachableIsUnavailable(t *testing.T) {
	c, err := elasticsearch.New(elasticsearch.Config{Addr: "http://127.0.0.1:1"}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err = c.ListDocuments(ctx, "Algebra-A")
	require.Error(t, err)
	require.True(t, errors.Is(err, models.ErrStoreUnavailable))
}

func TestGetAndFirst(t *testing.T) {
	f := newFakeCluster(t)
	f.pages["sat-prep-lessons"] = [][]map[string]any{{{"id": "l1", "title": "Slopes"}}}
	f.pages["sat-prep-taxonomy"] = [][]map[string]any{{{"sections": []any{"Math"}}}}
	c := newClient(t, f, 10)

	lesson, err := c.Get(context.Background(), "lessons", "l1")
	require.NoError(t, err)
	require.Equal(t, "Slopes", lesson["title"])

	_, err = c.Get(context.Background(), "lessons", "missing")
	require.True(t, errors.Is(err, models.ErrNotFound))

	taxonomy, err := c.First(context.Background(), "taxonomy")
	require.NoError(t, err)
	require.Contains(t, taxonomy, "sections")

	_, err = c.First(context.Background(), "glossary")
	require.True(t, errors.Is(err, models.ErrNotFound))
}

func TestBulkIndex(t *testing.T) {
	f := newFakeCluster(t)
	c := newClient(t, f, 10)

	n, err := c.BulkIndex(context.Background(), "sat-prep-glossary", []elasticsearch.Document{
		{ID: "g1", Source: map[string]any{"terms": []any{"slope"}}},
		{ID: "g2", Source: map[string]any{"terms": []any{}}},
	}, true)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	f.mu.Lock()
	defer f.mu.Unlock()
	require.Contains(t, f.bulk, `"_id":"g1"`)
	require.Contains(t, f.bulk, `"_index":"sat-prep-glossary"`)
}

func TestLazyConnectsOnce(t *testing.T) {
	f := newFakeCluster(t)
	f.pages["sat-prep-problems-algebra-a"] = [][]map[string]any{{{"id": "d1"}}}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	lazy := elasticsearch.NewLazy(elasticsearch.Config{Addr: srv.URL, IndexPrefix: "sat-prep"}, time.Second, nil)

	first, err := lazy.Client(context.Background())
	require.NoError(t, err)
	second, err := lazy.Client(context.Background())
	require.NoError(t, err)
	require.Same(t, first, second)
	require.Equal(t, int32(1), f.pings.Load())

	docs, err := lazy.ListDocuments(context.Background(), "Algebra-A")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.NoError(t, lazy.Health(context.Background()))
}

func TestLazyRetriesAfterFailure(t *testing.T) {
	f := newFakeCluster(t)
	f.status.Store(http.StatusInternalServerError)
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	lazy := elasticsearch.NewLazy(elasticsearch.Config{Addr: srv.URL}, time.Second, nil)

	_, err := lazy.Client(context.Background())
	require.True(t, errors.Is(err, models.ErrStoreUnavailable))

	f.status.Store(0)
	_, err = lazy.Client(context.Background())
	require.NoError(t, err)
}

func TestLazyFirstUseDoesNotSerializePings(t *testing.T) {
	f := newFakeCluster(t)
	f.pingGate = make(chan struct{})
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	release := sync.OnceFunc(func() { close(f.pingGate) })
	t.Cleanup(release)

	lazy := elasticsearch.NewLazy(elasticsearch.Config{Addr: srv.URL}, 5*time.Second, nil)

	const callers = 3
	clients := make([]*elasticsearch.Client, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			clients[i], errs[i] = lazy.Client(context.Background())
		}()
	}

	// Every caller reaches the cluster while the first ping is still pending.
	require.Eventually(t, func() bool { return f.pings.Load() == callers }, 2*time.Second, 5*time.Millisecond)
	release()
	wg.Wait()

	for i := range callers {
		require.NoError(t, errs[i])
		require.Same(t, clients[0], clients[i])
	}

	again, err := lazy.Client(context.Background())
	require.NoError(t, err)
	require.Same(t, clients[0], again)
	require.Equal(t, int32(callers), f.pings.Load())
}
