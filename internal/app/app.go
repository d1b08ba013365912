package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"scraper_results/internal/config"
	"scraper_results/internal/db"
	"scraper_results/internal/elastic"
	"scraper_results/internal/logger"
	"scraper_results/internal/models"
	"scraper_results/internal/query"
	"scraper_results/internal/render"
	"scraper_results/internal/sources"
)

const MissingStemMessage = "Need filestem to write results to file."

// ArtifactSink stores a rendered artifact under name.
type ArtifactSink interface {
	Write(name, text string) error
}

// FileSink writes artifacts as UTF-8 files in Dir (the working directory when
// empty).
type FileSink struct {
	Dir string
}

func (s FileSink) Write(name, text string) error {
	f, err := os.Create(filepath.Join(s.Dir, name))
	if err != nil {
		return fmt.Errorf("create artifact: %w", err)
	}
	if _, err := io.WriteString(f, text); err != nil {
		_ = f.Close()
		return fmt.Errorf("write artifact: %w", err)
	}
	return f.Close()
}

type ScraperApp struct {
	router  *query.Router
	sources *sources.Set
	sink    ArtifactSink
	log     logger.Logger
	out     io.Writer
	closers []func() error
}

// New wires the configured backend, the source whitelist and the renderer.
func New(ctx context.Context, cfg *config.Config) (*ScraperApp, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, err
	}

	src, err := sources.Load(cfg.SourcesFile)
	if err != nil {
		return nil, fmt.Errorf("load sources: %w", err)
	}
	log.Debug("sources loaded",
		logger.String("file", cfg.SourcesFile),
		logger.Int("count", src.Len()),
		logger.Strings("sources", src.List()))

	a := &ScraperApp{
		sources: src,
		sink:    FileSink{},
		log:     log,
		out:     os.Stdout,
	}

	var strategy query.Strategy
	if cfg.Elasticsearch {
		client, err := elastic.NewClient(ctx, cfg.Search, nil, log)
		if err != nil {
			return nil, err
		}
		strategy = query.NewSearchIndexStrategy(client, query.SearchIndexOptions{
			Index:    cfg.Index,
			DocType:  cfg.Search.DocType,
			PageSize: cfg.Search.PageSize,
			Scroll:   cfg.Search.ScrollKeepAlive(),
		}, log)
	} else {
		decoder, err := render.NewDecoder(cfg.Render.Charset)
		if err != nil {
			return nil, err
		}
		mongoDB, err := db.NewMongoDB(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, mongoDB.Close)
		strategy = query.NewDocumentStoreStrategy(
			mongoDB.Stories(),
			render.NewRenderer(decoder, render.UAX29Segmenter{}, log),
			query.DocumentStoreOptions{
				UpperBoundInclusive:         *cfg.DocumentStore.UpperBoundInclusive,
				ArtifactUpperBoundInclusive: *cfg.DocumentStore.ArtifactUpperBoundInclusive,
			},
			log,
		)
	}
	a.router = query.NewRouter(strategy, log, a.out)

	return a, nil
}

// NewWithRouter assembles an app around an existing router. A nil sink writes
// files to the working directory, a nil out discards console output.
func NewWithRouter(router *query.Router, src *sources.Set, sink ArtifactSink, log logger.Logger, out io.Writer) *ScraperApp {
	if sink == nil {
		sink = FileSink{}
	}
	if out == nil {
		out = io.Discard
	}
	return &ScraperApp{router: router, sources: src, sink: sink, log: log, out: out}
}

func (a *ScraperApp) Backend() query.BackendKind {
	return a.router.Backend()
}

// DayWindow covers the day before and the day of day, measured from its
// midnight.
func DayWindow(day time.Time) models.Window {
	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return models.Window{
		After:  midnight.Add(-24 * time.Hour),
		Before: midnight.Add(24 * time.Hour),
	}
}

func ArtifactName(stem string, day time.Time) string {
	return fmt.Sprintf("%s%04d%02d%02d.txt", stem, day.Year(), int(day.Month()), day.Day())
}

// ProcessDay queries the window around day and, when writeFile is set and
// the artifact is not empty, stores it as {stem}{YYYYMMDD}.txt. The returned
// string is the artifact name, empty when nothing was written.
func (a *ScraperApp) ProcessDay(ctx context.Context, day time.Time, writeFile bool, stem string) (*query.Result, string, error) {
	w := DayWindow(day)
	res, text, err := a.router.Execute(ctx, w, a.sources, writeFile)
	if err != nil {
		return nil, "", err
	}
	if text == "" {
		return res, "", nil
	}

	if stem == "" {
		a.log.Warn(MissingStemMessage)
		fmt.Fprintln(a.out, MissingStemMessage)
		return res, "", nil
	}

	name := ArtifactName(stem, day)
	if err := a.sink.Write(name, text); err != nil {
		_ = res.Records.Close(ctx)
		return nil, "", err
	}
	a.log.Info("artifact written", logger.String("file", name), logger.Int("bytes", len(text)))
	return res, name, nil
}

func (a *ScraperApp) Close() error {
	var first error
	for _, c := range a.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	_ = a.log.Sync()
	return first
}
