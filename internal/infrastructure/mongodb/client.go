package mongodb

import (
	"context"
	"fmt"
	"strings"

	"github.com/Lakshmikallagunta/Shams/internal/config"
	"github.com/Lakshmikallagunta/Shams/internal/infrastructure/database"
	"github.com/Lakshmikallagunta/Shams/internal/infrastructure/database/errors"
	"github.com/Lakshmikallagunta/Shams/internal/infrastructure/observability"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
)

const defaultDatabase = "shams"

// Client owns the MongoDB connection used when STORE_DRIVER=mongo.
type Client struct {
	*mongo.Client
	uri     string
	dbName  string
	cfg     *config.DatabaseConfig
	metrics *observability.Metrics
	logger  *observability.Logger
}

// NewClient configures the driver without waiting for a server. mongo.Connect
// only starts background monitoring; reachability is checked by Ping.
func NewClient(ctx context.Context, cfg *config.DatabaseConfig, metrics *observability.Metrics, logger *observability.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.MongoURI) == "" {
		return nil, fmt.Errorf("ATLAS_URI or MONGO_URI must be set when STORE_DRIVER=%s", config.DriverMongo)
	}

	opts := clientOptions(cfg)
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mongo uri %s: %w", database.MaskCredentials(cfg.MongoURI), err)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to configure mongo client %s: %w", database.MaskCredentials(cfg.MongoURI), err)
	}

	return &Client{
		Client:  client,
		uri:     cfg.MongoURI,
		dbName:  databaseName(cfg.MongoURI),
		cfg:     cfg,
		metrics: metrics,
		logger:  logger,
	}, nil
}

// clientOptions applies the URI, pool and timeouts, pinned to strict Stable API v1.
func clientOptions(cfg *config.DatabaseConfig) *options.ClientOptions {
	return options.Client().
		ApplyURI(cfg.MongoURI).
		SetServerSelectionTimeout(cfg.ConnectTimeout).
		SetSocketTimeout(cfg.SocketTimeout).
		SetMaxPoolSize(uint64(cfg.MaxOpenConns)).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1).SetStrict(true))
}

// databaseName is the database named in the URI path, falling back to "shams".
func databaseName(uri string) string {
	cs, err := connstring.ParseAndValidate(uri)
	if err != nil || cs.Database == "" {
		return defaultDatabase
	}
	return cs.Database
}

func (c *Client) Database() *mongo.Database {
	return c.Client.Database(c.dbName)
}

func (c *Client) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx, readpref.Primary())
}

// Connector returns the startup connector for this client.
func (c *Client) Connector() *database.Connector {
	return &database.Connector{
		Store:   "mongodb",
		Target:  c.uri,
		Ping:    c.Ping,
		Timeout: c.cfg.ConnectTimeout,
		Retry:   errors.DefaultRetryConfig().MergeWith(&c.cfg.Retry),
		Metrics: c.metrics,
		Logger:  c.logger,
	}
}

func (c *Client) Close(ctx context.Context) error {
	return c.Client.Disconnect(ctx)
}
