// Package render flattens a day's stories into the text artifact handed to
// the downstream event coder: one block per story with its position, date,
// URL and the first few sentences of its body.
package render

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"scraper_results/internal/logger"
	"scraper_results/internal/models"
)

const (
	HeaderSentences = 4
	headerSeparator = "  "
	blockSeparator  = "\n"
)

var ErrMissingContent = errors.New("record has no content")

// RecordSource is a one-shot sequence of records. Record may report a
// per-record failure without ending the sequence.
type RecordSource interface {
	Next(ctx context.Context) bool
	Record() (models.Record, error)
	Err() error
}

// Failure is a record that was dropped from the artifact.
type Failure struct {
	Index int
	Err   error
}

type Artifact struct {
	Text     string
	Failures []Failure
}

type Renderer struct {
	decoder   *Decoder
	segmenter Segmenter
	log       logger.Logger
}

func NewRenderer(decoder *Decoder, segmenter Segmenter, log logger.Logger) *Renderer {
	if segmenter == nil {
		segmenter = UAX29Segmenter{}
	}
	return &Renderer{decoder: decoder, segmenter: segmenter, log: log}
}

// Render consumes src and returns the artifact. Records that fail are logged
// and skipped; only an error from the source itself is returned.
func (r *Renderer) Render(ctx context.Context, src RecordSource) (Artifact, error) {
	var (
		blocks   []string
		failures []Failure
	)
	for num := 0; src.Next(ctx); num++ {
		rec, err := src.Record()
		var block string
		if err == nil {
			block, err = r.Block(num, rec)
		}
		if err != nil {
			r.log.Error("Error on entry", logger.Int("index", num), logger.Error(err))
			failures = append(failures, Failure{Index: num, Err: err})
			continue
		}
		blocks = append(blocks, block)
	}
	if err := src.Err(); err != nil {
		return Artifact{}, fmt.Errorf("iterate records: %w", err)
	}
	return Artifact{Text: strings.Join(blocks, blockSeparator), Failures: failures}, nil
}

// Block renders a single record as "{num}\t{date}\t{url}\n{header}\n".
func (r *Renderer) Block(num int, rec models.Record) (string, error) {
	if rec.Content == nil {
		return "", ErrMissingContent
	}
	text, err := r.decoder.Decode(rec.Content)
	if err != nil {
		return "", err
	}
	header := r.Header(Clean(rec.Source, text))
	return fmt.Sprintf("%d\t%s\t%s\n%s\n", num, rec.Date, rec.URL, header), nil
}

func (r *Renderer) Header(text string) string {
	sents := r.segmenter.Split(text)
	if len(sents) > HeaderSentences {
		sents = sents[:HeaderSentences]
	}
	return strings.Join(sents, headerSeparator)
}
