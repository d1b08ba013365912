// Package query runs the windowed story query against whichever store the
// pipeline is configured for and hands back a normalized, lazily consumed
// result.
package query

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"scraper_results/internal/logger"
	"scraper_results/internal/models"
	"scraper_results/internal/render"
	"scraper_results/internal/sources"
)

type BackendKind string

const (
	BackendDocumentStore BackendKind = "document_store"
	BackendSearchIndex   BackendKind = "search_index"
)

var (
	// ErrUnsupportedCombination is returned when a text artifact is requested
	// from a backend that cannot produce one.
	ErrUnsupportedCombination = errors.New("text artifact is not supported by the search index backend")
	ErrUnknownBackend         = errors.New("unknown backend")
)

func BackendFor(elasticsearch bool) BackendKind {
	if elasticsearch {
		return BackendSearchIndex
	}
	return BackendDocumentStore
}

func ParseBackend(s string) (BackendKind, error) {
	switch BackendKind(strings.ToLower(strings.TrimSpace(s))) {
	case BackendDocumentStore, "mongo", "mongodb":
		return BackendDocumentStore, nil
	case BackendSearchIndex, "elasticsearch", "es":
		return BackendSearchIndex, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownBackend, s)
}

// Cursor is a one-shot sequence of records. Restarting requires a new query.
type Cursor interface {
	render.RecordSource
	Close(ctx context.Context) error
}

type Result struct {
	Backend BackendKind
	Count   int64 // matching stories, as reported by the backend
	Records Cursor

	// Failures lists the stories All could not decode. Count equals the
	// drained records plus the failures.
	Failures []render.Failure
}

// All drains and closes the cursor. Stories that fail to decode are skipped
// and collected in Failures; only a cursor error is returned.
func (r *Result) All(ctx context.Context) ([]models.Record, error) {
	defer r.Records.Close(ctx)

	var out []models.Record
	for i := 0; r.Records.Next(ctx); i++ {
		rec, err := r.Records.Record()
		if err != nil {
			r.Failures = append(r.Failures, render.Failure{Index: i, Err: err})
			continue
		}
		out = append(out, rec)
	}
	return out, r.Records.Err()
}

// Strategy executes the window query for one backend. The returned string is
// the rendered artifact, empty unless wantArtifact is set.
type Strategy interface {
	Kind() BackendKind
	Query(ctx context.Context, w models.Window, src *sources.Set, wantArtifact bool) (*Result, string, error)
}

type Router struct {
	strategy Strategy
	log      logger.Logger
	out      io.Writer
}

// NewRouter binds a strategy. The story total is printed to out in addition
// to the structured log entry; a nil out discards it.
func NewRouter(strategy Strategy, log logger.Logger, out io.Writer) *Router {
	if out == nil {
		out = io.Discard
	}
	return &Router{
		strategy: strategy,
		log:      log.With(logger.String("backend", string(strategy.Kind()))),
		out:      out,
	}
}

func (r *Router) Backend() BackendKind {
	return r.strategy.Kind()
}

func (r *Router) Execute(ctx context.Context, w models.Window, src *sources.Set, wantArtifact bool) (*Result, string, error) {
	kind := r.strategy.Kind()
	res, text, err := r.strategy.Query(ctx, w, src, wantArtifact)
	if err != nil {
		return nil, "", fmt.Errorf("%s query: %w", kind, err)
	}
	res.Backend = kind

	fmt.Fprintf(r.out, "Total number of stories: %d\n", res.Count)
	r.log.Info("Total number of stories",
		logger.Int64("count", res.Count),
		logger.Time("after", w.After),
		logger.Time("before", w.Before))

	return res, text, nil
}

func sourceKeys(src *sources.Set) []string {
	if src == nil {
		return []string{}
	}
	return src.List()
}
