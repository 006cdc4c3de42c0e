package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-scanner/internal/logger"
)

const snapshotKeyPrefix = "analytics_snapshot:"

// InitializeSnapshotCache sets up Redis for snapshot caching and tests the
// connection before handing the client out.
func InitializeSnapshotCache(redisAddr string, customLogger *logger.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: "",
		DB:       0,
		PoolSize: 10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		if customLogger != nil {
			customLogger.Error("CACHE", fmt.Sprintf("Failed to connect to Redis at %s: %v", redisAddr, err))
		}
		return nil, err
	}

	if customLogger != nil {
		customLogger.Info("CACHE", fmt.Sprintf("Connected to Redis at %s for snapshot caching", redisAddr))
	}
	return client, nil
}

// SnapshotCache keeps recently computed snapshots in Redis so dashboard
// polling does not hit the stores on every refresh. It is an optimization
// only: every failure path degrades to a cache miss and a direct read.
type SnapshotCache struct {
	Client *redis.Client
	TTL    time.Duration
	Logger *logger.Logger
}

func NewSnapshotCache(client *redis.Client, ttl time.Duration, log *logger.Logger) *SnapshotCache {
	return &SnapshotCache{Client: client, TTL: ttl, Logger: log}
}

func (c *SnapshotCache) Get(ctx context.Context, selector string) (*Snapshot, bool) {
	if c == nil || c.Client == nil {
		return nil, false
	}
	payload, err := c.Client.Get(ctx, snapshotKeyPrefix+selector).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		if c.Logger != nil {
			c.Logger.Warn("CACHE", fmt.Sprintf("Snapshot read failed for %s: %v", selector, err))
		}
		return nil, false
	}
	snapshot := new(Snapshot)
	if err := json.Unmarshal(payload, snapshot); err != nil {
		return nil, false
	}
	return snapshot, true
}

func (c *SnapshotCache) Put(ctx context.Context, selector string, snapshot *Snapshot) {
	if c == nil || c.Client == nil {
		return
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return
	}
	if err := c.Client.Set(ctx, snapshotKeyPrefix+selector, payload, c.TTL).Err(); err != nil {
		if c.Logger != nil {
			c.Logger.Warn("CACHE", fmt.Sprintf("Snapshot write failed for %s: %v", selector, err))
		}
	}
}
