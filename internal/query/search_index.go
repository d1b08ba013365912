package query

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"scraper_results/internal/logger"
	"scraper_results/internal/models"
	"scraper_results/internal/sources"
)

const (
	FieldPublishedDate = "published_date"
	FieldStanford      = "stanford"

	// PublishedDateLayout is how window bounds are sent to the index.
	PublishedDateLayout = "2006-01-02T15:04:05.000000"
)

type SearchIndexOptions struct {
	Index    string
	DocType  string
	PageSize int
	Scroll   time.Duration
}

// SearchIndexStrategy queries stories that have been through the Stanford
// annotation stage. The source whitelist is not applied on this path.
type SearchIndexStrategy struct {
	client *es.Client
	opts   SearchIndexOptions
	log    logger.Logger
}

func NewSearchIndexStrategy(client *es.Client, opts SearchIndexOptions, log logger.Logger) *SearchIndexStrategy {
	if opts.PageSize <= 0 {
		opts.PageSize = 500
	}
	if opts.Scroll <= 0 {
		opts.Scroll = time.Minute
	}
	return &SearchIndexStrategy{client: client, opts: opts, log: log}
}

func (s *SearchIndexStrategy) Kind() BackendKind {
	return BackendSearchIndex
}

func (s *SearchIndexStrategy) Query(ctx context.Context, w models.Window, _ *sources.Set, wantArtifact bool) (*Result, string, error) {
	if wantArtifact {
		return nil, "", ErrUnsupportedCombination
	}

	body, err := json.Marshal(WindowQuery(w))
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal query: %w", err)
	}

	s.log.Debug("searching index",
		logger.String("index", s.opts.Index),
		logger.String("doc_type", s.opts.DocType),
		logger.Int("page_size", s.opts.PageSize))

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.opts.Index),
		s.client.Search.WithBody(bytes.NewReader(body)),
		s.client.Search.WithSize(s.opts.PageSize),
		s.client.Search.WithScroll(s.opts.Scroll),
		s.client.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		return nil, "", fmt.Errorf("search request failed: %w", err)
	}
	page, err := decodePage(res)
	if err != nil {
		return nil, "", err
	}

	cur := &scrollCursor{
		client:    s.client,
		keepAlive: s.opts.Scroll,
		pageSize:  s.opts.PageSize,
		pos:       -1,
	}
	cur.load(page)

	return &Result{Count: page.Hits.Total.Value, Records: cur}, "", nil
}

// WindowQuery matches annotated stories published strictly inside w.
func WindowQuery(w models.Window) map[string]any {
	return map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"filter": []any{
					map[string]any{
						"range": map[string]any{
							FieldPublishedDate: map[string]any{
								"gt": w.After.UTC().Format(PublishedDateLayout),
								"lt": w.Before.UTC().Format(PublishedDateLayout),
							},
						},
					},
					map[string]any{
						"term": map[string]any{
							FieldStanford: 1,
						},
					},
				},
			},
		},
	}
}

type searchHit struct {
	ID     string          `json:"_id"`
	Source json.RawMessage `json:"_source"`
}

type searchPage struct {
	ScrollID string `json:"_scroll_id"`
	Hits     struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []searchHit `json:"hits"`
	} `json:"hits"`
}

func decodePage(res *esapi.Response) (*searchPage, error) {
	defer func() {
		_ = res.Body.Close()
	}()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("search returned error [%d]: %s", res.StatusCode, string(body))
	}

	var page searchPage
	if err := json.NewDecoder(res.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &page, nil
}

// scrollCursor walks the scroll pages lazily; the next page is only fetched
// once the current one is exhausted.
type scrollCursor struct {
	client    *es.Client
	keepAlive time.Duration
	pageSize  int

	scrollID string
	hits     []searchHit
	pos      int
	done     bool
	err      error
}

func (c *scrollCursor) load(page *searchPage) {
	if page.ScrollID != "" {
		c.scrollID = page.ScrollID
	}
	c.hits = page.Hits.Hits
	c.pos = -1
	if len(c.hits) < c.pageSize {
		c.done = true
	}
}

func (c *scrollCursor) Next(ctx context.Context) bool {
	if c.err != nil {
		return false
	}
	if c.pos+1 < len(c.hits) {
		c.pos++
		return true
	}
	if c.done || c.scrollID == "" {
		c.done = true
		return false
	}

	res, err := c.client.Scroll(
		c.client.Scroll.WithContext(ctx),
		c.client.Scroll.WithScrollID(c.scrollID),
		c.client.Scroll.WithScroll(c.keepAlive),
	)
	if err != nil {
		c.err = fmt.Errorf("scroll request failed: %w", err)
		return false
	}
	page, err := decodePage(res)
	if err != nil {
		c.err = err
		return false
	}
	c.load(page)
	if len(c.hits) == 0 {
		return false
	}
	c.pos = 0
	return true
}

func (c *scrollCursor) Record() (models.Record, error) {
	hit := c.hits[c.pos]
	var doc models.IndexedDocument
	if err := json.Unmarshal(hit.Source, &doc); err != nil {
		return models.Record{}, fmt.Errorf("decode hit %s: %w", hit.ID, err)
	}
	return doc.Record(), nil
}

func (c *scrollCursor) Err() error {
	return c.err
}

func (c *scrollCursor) Close(ctx context.Context) error {
	if c.scrollID == "" {
		return nil
	}
	id := c.scrollID
	c.scrollID = ""
	c.done = true

	res, err := c.client.ClearScroll(
		c.client.ClearScroll.WithContext(ctx),
		c.client.ClearScroll.WithScrollID(id),
	)
	if err != nil {
		return fmt.Errorf("clear scroll: %w", err)
	}
	defer func() {
		_ = res.Body.Close()
	}()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("clear scroll returned error [%d]", res.StatusCode)
	}
	return nil
}
