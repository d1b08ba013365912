package query_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"scraper_results/internal/logger"
	"scraper_results/internal/models"
	"scraper_results/internal/query"
	"scraper_results/internal/sources"
)

// fakeIndex answers search, scroll and clear-scroll requests from canned pages.
type fakeIndex struct {
	mu          sync.Mutex
	pages       [][]models.IndexedDocument
	total       int64
	status      int
	searchBody  map[string]any
	searchQuery string
	scrolls     int
	clears      int
}

func (f *fakeIndex) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.status != 0 {
		return respond(f.status, `{"error":{"type":"index_not_found_exception"}}`), nil
	}

	switch {
	case req.Method == http.MethodDelete && strings.HasPrefix(req.URL.Path, "/_search/scroll"):
		f.clears++
		return respond(http.StatusOK, `{"succeeded":true,"num_freed":1}`), nil
	case strings.HasPrefix(req.URL.Path, "/_search/scroll"):
		f.scrolls++
		return f.page(f.scrolls), nil
	default:
		f.searchQuery = req.URL.RawQuery
		if req.Body != nil {
			data, _ := io.ReadAll(req.Body)
			_ = json.Unmarshal(data, &f.searchBody)
		}
		return f.page(0), nil
	}
}

func (f *fakeIndex) page(i int) *http.Response {
	var hits []map[string]any
	if i < len(f.pages) {
		for j, doc := range f.pages[i] {
			hits = append(hits, map[string]any{
				"_id":     fmt.Sprintf("%d-%d", i, j),
				"_source": doc,
			})
		}
	}
	body, _ := json.Marshal(map[string]any{
		"_scroll_id": "scroll-1",
		"hits": map[string]any{
			"total": map[string]any{"value": f.total, "relation": "eq"},
			"hits":  hits,
		},
	})
	return respond(http.StatusOK, string(body))
}

func respond(status int, body string) *http.Response {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("X-Elastic-Product", "Elasticsearch")
	return &http.Response{
		StatusCode: status,
		Header:     h,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
	}
}

func newSearchStrategy(t *testing.T, idx *fakeIndex, pageSize int) *query.SearchIndexStrategy {
	t.Helper()
	client, err := es.NewClient(es.Config{
		Addresses: []string{"http://localhost:9200"},
		Transport: idx,
	})
	require.NoError(t, err)
	return query.NewSearchIndexStrategy(client, query.SearchIndexOptions{
		Index:    "stories_index",
		DocType:  "news",
		PageSize: pageSize,
		Scroll:   time.Minute,
	}, logger.NewNop())
}

func indexed(url string) models.IndexedDocument {
	return models.IndexedDocument{
		Source:        "reuters",
		Content:       "Annotated story.",
		URL:           url,
		Date:          "2024-01-01",
		PublishedDate: "2024-01-01T12:00:00.000000",
		Stanford:      1,
	}
}

func TestWindowQuery(t *testing.T) {
	q := query.WindowQuery(window())
	data, err := json.Marshal(q)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"query": {"bool": {"filter": [
			{"range": {"published_date": {"gt": "2023-12-31T12:00:00.000000", "lt": "2024-01-02T12:00:00.000000"}}},
			{"term": {"stanford": 1}}
		]}}
	}`, string(data))
}

func TestSearchIndex_ScrollsAllPages(t *testing.T) {
	idx := &fakeIndex{
		total: 3,
		pages: [][]models.IndexedDocument{
			{indexed("u1"), indexed("u2")},
			{indexed("u3")},
		},
	}
	s := newSearchStrategy(t, idx, 2)

	res, text, err := s.Query(context.Background(), window(), sources.NewSet("ignored"), false)
	require.NoError(t, err)
	assert.Empty(t, text)
	assert.Equal(t, int64(3), res.Count)

	recs := drain(t, res)
	assert.Equal(t, res.Count, int64(len(recs)))
	assert.Equal(t, []string{"u1", "u2", "u3"}, urlsOf(recs))
	assert.Equal(t, 1, recs[0].Stanford)
	assert.True(t, recs[0].Timestamp.Equal(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)))

	assert.Equal(t, 1, idx.scrolls)
	assert.Equal(t, 1, idx.clears)
	assert.Contains(t, idx.searchQuery, "size=2")
	assert.Contains(t, idx.searchQuery, "scroll=")

	filter := idx.searchBody["query"].(map[string]any)["bool"].(map[string]any)["filter"].([]any)
	require.Len(t, filter, 2)
	assert.Contains(t, filter[0].(map[string]any), "range")
	assert.Contains(t, filter[1].(map[string]any), "term")
}

func TestSearchIndex_SinglePageDoesNotScroll(t *testing.T) {
	idx := &fakeIndex{total: 1, pages: [][]models.IndexedDocument{{indexed("u1")}}}
	s := newSearchStrategy(t, idx, 10)

	res, _, err := s.Query(context.Background(), window(), nil, false)
	require.NoError(t, err)
	assert.Len(t, drain(t, res), 1)
	assert.Zero(t, idx.scrolls)
}

func TestSearchIndex_ArtifactUnsupported(t *testing.T) {
	idx := &fakeIndex{}
	s := newSearchStrategy(t, idx, 10)
	router := query.NewRouter(s, logger.NewNop(), nil)

	_, _, err := router.Execute(context.Background(), window(), sources.NewSet("reuters"), true)
	assert.ErrorIs(t, err, query.ErrUnsupportedCombination)
	assert.Nil(t, idx.searchBody)
}

func TestSearchIndex_ErrorResponse(t *testing.T) {
	s := newSearchStrategy(t, &fakeIndex{status: http.StatusNotFound}, 10)

	_, _, err := s.Query(context.Background(), window(), nil, false)
	assert.ErrorContains(t, err, "[404]")
}

func TestRouter_ReportsTotal(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	idx := &fakeIndex{total: 2, pages: [][]models.IndexedDocument{{indexed("u1"), indexed("u2")}}}
	var out bytes.Buffer
	router := query.NewRouter(newSearchStrategy(t, idx, 10), logger.FromZap(zap.New(core)), &out)

	res, _, err := router.Execute(context.Background(), window(), nil, false)
	require.NoError(t, err)
	assert.Equal(t, query.BackendSearchIndex, res.Backend)
	assert.Equal(t, query.BackendSearchIndex, router.Backend())
	assert.Equal(t, "Total number of stories: 2\n", out.String())

	entries := logs.FilterMessage("Total number of stories").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(2), entries[0].ContextMap()["count"])
	assert.Equal(t, "search_index", entries[0].ContextMap()["backend"])
}

func TestParseBackend(t *testing.T) {
	for in, want := range map[string]query.BackendKind{
		"mongo":          query.BackendDocumentStore,
		"MongoDB":        query.BackendDocumentStore,
		"document_store": query.BackendDocumentStore,
		" es ":           query.BackendSearchIndex,
		"elasticsearch":  query.BackendSearchIndex,
		"search_index":   query.BackendSearchIndex,
	} {
		got, err := query.ParseBackend(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := query.ParseBackend("postgres")
	assert.ErrorIs(t, err, query.ErrUnknownBackend)

	assert.Equal(t, query.BackendSearchIndex, query.BackendFor(true))
	assert.Equal(t, query.BackendDocumentStore, query.BackendFor(false))
}
