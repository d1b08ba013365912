package query

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"scraper_results/internal/logger"
	"scraper_results/internal/models"
	"scraper_results/internal/render"
	"scraper_results/internal/sources"
)

const (
	FieldDateAdded = "date_added"
	FieldSource    = "source"
)

// Collection is the part of *mongo.Collection the document store query uses.
type Collection interface {
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
}

// DocumentStoreOptions holds the upper-bound switches of the document store
// query. The defaults keep the scraper pipeline's historical bounds: returned
// stories use an inclusive upper bound, the artifact query an exclusive one.
// The two queries run independently and can disagree about a story stamped
// exactly at the upper bound.
type DocumentStoreOptions struct {
	UpperBoundInclusive         bool
	ArtifactUpperBoundInclusive bool
}

func DefaultDocumentStoreOptions() DocumentStoreOptions {
	return DocumentStoreOptions{
		UpperBoundInclusive:         true,
		ArtifactUpperBoundInclusive: false,
	}
}

type DocumentStoreStrategy struct {
	coll     Collection
	renderer *render.Renderer
	opts     DocumentStoreOptions
	log      logger.Logger
}

func NewDocumentStoreStrategy(coll Collection, renderer *render.Renderer, opts DocumentStoreOptions, log logger.Logger) *DocumentStoreStrategy {
	return &DocumentStoreStrategy{coll: coll, renderer: renderer, opts: opts, log: log}
}

func (s *DocumentStoreStrategy) Kind() BackendKind {
	return BackendDocumentStore
}

func (s *DocumentStoreStrategy) Query(ctx context.Context, w models.Window, src *sources.Set, wantArtifact bool) (*Result, string, error) {
	keys := sourceKeys(src)

	var text string
	if wantArtifact {
		var err error
		text, err = s.renderArtifact(ctx, WindowFilter(w, keys, s.opts.ArtifactUpperBoundInclusive))
		if err != nil {
			return nil, "", err
		}
	}

	filter := WindowFilter(w, keys, s.opts.UpperBoundInclusive)
	count, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, "", fmt.Errorf("count stories: %w", err)
	}
	cur, err := s.coll.Find(ctx, filter)
	if err != nil {
		return nil, "", fmt.Errorf("find stories: %w", err)
	}

	return &Result{Count: count, Records: &mongoCursor{cur: cur}}, text, nil
}

func (s *DocumentStoreStrategy) renderArtifact(ctx context.Context, filter bson.M) (string, error) {
	cur, err := s.coll.Find(ctx, filter)
	if err != nil {
		return "", fmt.Errorf("find stories for artifact: %w", err)
	}
	records := &mongoCursor{cur: cur}
	defer records.Close(ctx)

	art, err := s.renderer.Render(ctx, records)
	if err != nil {
		return "", err
	}
	if len(art.Failures) > 0 {
		s.log.Warn("stories left out of artifact", logger.Int("failed", len(art.Failures)))
	}
	return art.Text, nil
}

// WindowFilter matches stories added after w.After and before (or at, when
// upperInclusive) w.Before, from one of the given sources.
func WindowFilter(w models.Window, sourceKeys []string, upperInclusive bool) bson.M {
	upperOp := "$lt"
	if upperInclusive {
		upperOp = "$lte"
	}
	return bson.M{"$and": bson.A{
		bson.M{FieldDateAdded: bson.M{upperOp: w.Before}},
		bson.M{FieldDateAdded: bson.M{"$gt": w.After}},
		bson.M{FieldSource: bson.M{"$in": sourceKeys}},
	}}
}

type mongoCursor struct {
	cur *mongo.Cursor
}

func (c *mongoCursor) Next(ctx context.Context) bool {
	return c.cur.Next(ctx)
}

func (c *mongoCursor) Record() (models.Record, error) {
	var doc models.StoredDocument
	if err := c.cur.Decode(&doc); err != nil {
		return models.Record{}, fmt.Errorf("decode story: %w", err)
	}
	return doc.Record(), nil
}

func (c *mongoCursor) Err() error {
	return c.cur.Err()
}

func (c *mongoCursor) Close(ctx context.Context) error {
	return c.cur.Close(ctx)
}
