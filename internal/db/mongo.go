package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"scraper_results/internal/config"
	"scraper_results/internal/logger"
)

type MongoDB struct {
	client  *mongo.Client
	stories *mongo.Collection
	timeout time.Duration
	log     logger.Logger
}

func NewMongoDB(ctx context.Context, cfg *config.Config, log logger.Logger) (*MongoDB, error) {
	timeout := time.Duration(cfg.DB.TimeoutSec) * time.Second
	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, ClientOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("can't ping MongoDB: %w", err)
	}

	d := &MongoDB{
		client:  client,
		stories: client.Database(cfg.DB.Database).Collection(cfg.DB.Collection),
		timeout: timeout,
		log:     log,
	}

	if cfg.DB.EnsureIndexes {
		if err := d.EnsureIndexes(ctx); err != nil {
			_ = d.Close()
			return nil, err
		}
	}

	log.Info("connected to MongoDB",
		logger.String("database", cfg.DB.Database),
		logger.String("collection", cfg.DB.Collection),
		logger.Bool("ensure_indexes", cfg.DB.EnsureIndexes))

	return d, nil
}

// ClientOptions builds the driver options from either an explicit connection
// string or the db_host / auth_* fields.
func ClientOptions(cfg *config.Config) *options.ClientOptions {
	uri := cfg.DB.Connection
	if uri == "" {
		uri = cfg.DBHost
		if !strings.HasPrefix(uri, "mongodb://") && !strings.HasPrefix(uri, "mongodb+srv://") {
			uri = "mongodb://" + uri
		}
	}

	opts := options.Client().ApplyURI(uri)
	if cfg.AuthUser != "" {
		opts.SetAuth(options.Credential{
			AuthSource: cfg.AuthDB,
			Username:   cfg.AuthUser,
			Password:   cfg.AuthPass,
		})
	}
	return opts
}

// Stories is the collection the scraper writes to.
func (d *MongoDB) Stories() *mongo.Collection {
	return d.stories
}

// EnsureIndexes creates the compound index backing the window query.
func (d *MongoDB) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	indexModel := mongo.IndexModel{
		Keys: bson.D{
			{Key: "date_added", Value: 1},
			{Key: "source", Value: 1},
		},
	}
	name, err := d.stories.Indexes().CreateOne(ctx, indexModel)
	if err != nil {
		return fmt.Errorf("can't create date_added index: %w", err)
	}
	d.log.Debug("index ready", logger.String("index", name))
	return nil
}

func (d *MongoDB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	return d.client.Disconnect(ctx)
}
