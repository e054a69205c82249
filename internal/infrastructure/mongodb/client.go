package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/steamcity/iot-platform/internal/docstore"
	"github.com/steamcity/iot-platform/internal/infrastructure/config"
)

// Default timeouts for MongoDB operations.
const (
	defaultConnectTimeout = 10 * time.Second
	defaultPingTimeout    = 5 * time.Second
	defaultMaxRetries     = 5
	maxRetryInterval      = 10 * time.Second
)

// Client wraps a mongo.Client bound to one database.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect dials MongoDB and verifies connectivity.
//
// The ping is retried with exponential backoff up to cfg.MaxRetries times.
// An unparsable URI fails immediately.
//
// Parameters:
//   - ctx: Context bounding the whole connection attempt
//   - cfg: MongoDB configuration from config.yaml
//
// Returns:
//   - *Client: Connected client ready for use
//   - error: ErrInvalidURI or ErrConnectionFailed (wrapping the driver error)
func Connect(ctx context.Context, cfg config.MongoDBConfig) (*Client, error) {
	timeout := time.Duration(cfg.ConnectTimeout) * time.Second
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = defaultMaxRetries
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout)
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURI, err)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = maxRetryInterval
	// #nosec G115 -- retries validated above to be positive
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(retries)), ctx)

	ping := func() error {
		pingCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return client.Ping(pingCtx, nil)
	}
	if err := backoff.Retry(ping, policy); err != nil {
		_ = client.Disconnect(context.Background()) //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return &Client{
		client: client,
		db:     client.Database(cfg.Name),
	}, nil
}

// Database returns the configured database handle.
func (c *Client) Database() *mongo.Database {
	return c.db
}

// HealthCheck pings the primary.
func (c *Client) HealthCheck(ctx context.Context) error {
	checkCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	if err := c.client.Ping(checkCtx, nil); err != nil {
		return fmt.Errorf("mongodb health check failed: %w", err)
	}
	return nil
}

// Close disconnects from the server.
func (c *Client) Close(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	if err := c.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnecting mongodb: %w", err)
	}
	return nil
}

// IndexSpecs lists the indexes EnsureIndexes creates, per collection.
func IndexSpecs() map[string][]mongo.IndexModel {
	unique := func(name string) mongo.IndexModel {
		return mongo.IndexModel{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetName(name).SetUnique(true),
		}
	}

	return map[string][]mongo.IndexModel{
		docstore.Experiments: {
			unique("experiments_id_unique"),
			{Keys: bson.D{{Key: "location", Value: "2dsphere"}}, Options: options.Index().SetName("experiments_location_2dsphere")},
			{Keys: bson.D{{Key: "cluster_id", Value: 1}}, Options: options.Index().SetName("experiments_cluster")},
		},
		docstore.SensorDevices: {
			unique("sensor_devices_id_unique"),
			{
				Keys:    bson.D{{Key: "experiment_id", Value: 1}, {Key: "status", Value: 1}},
				Options: options.Index().SetName("sensor_devices_experiment_status"),
			},
		},
		docstore.SensorTypes: {
			unique("sensor_types_id_unique"),
		},
		docstore.Measurements: {
			{
				Keys:    bson.D{{Key: "experiment_id", Value: 1}, {Key: "timestamp", Value: -1}},
				Options: options.Index().SetName("measurements_experiment_timestamp"),
			},
			{
				Keys:    bson.D{{Key: "sensor_id", Value: 1}, {Key: "timestamp", Value: -1}},
				Options: options.Index().SetName("measurements_sensor_timestamp"),
			},
		},
	}
}

// EnsureIndexes creates every index in IndexSpecs. Existing indexes with the
// same definition are left untouched by the server.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	for coll, models := range IndexSpecs() {
		if _, err := c.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("creating indexes on %s: %w", coll, err)
		}
	}
	return nil
}
