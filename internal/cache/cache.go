package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/therealutkarshpriyadarshi/jifmaker/pkg/models"
)

// Cache provides caching functionality using Redis
type Cache struct {
	client *redis.Client
}

// NewCache creates a new cache instance
func NewCache(host string, port int, password string, db int) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Cache{client: client}, nil
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}

// Probe Cache Operations

// ProbeKey identifies one version of a source file. A changed size or
// modification time invalidates the entry.
func ProbeKey(path string, size int64, modTime time.Time) string {
	return fmt.Sprintf("probe:%s:%d:%d", path, size, modTime.UnixNano())
}

// SetProbe caches probed source properties
func (c *Cache) SetProbe(ctx context.Context, key string, info models.SourceMediaInfo, ttl time.Duration) error {
	return c.SetWithJSON(ctx, key, info, ttl)
}

// GetProbe retrieves probed source properties. ok is false on a cache miss.
func (c *Cache) GetProbe(ctx context.Context, key string) (info models.SourceMediaInfo, ok bool, err error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return models.SourceMediaInfo{}, false, nil // Cache miss
		}
		return models.SourceMediaInfo{}, false, fmt.Errorf("failed to get probe from cache: %w", err)
	}

	if err := json.Unmarshal(data, &info); err != nil {
		return models.SourceMediaInfo{}, false, fmt.Errorf("failed to unmarshal probe: %w", err)
	}

	return info, true, nil
}

// Job Cache Operations

// SetJob caches job status
func (c *Cache) SetJob(ctx context.Context, job *models.ConversionJob, ttl time.Duration) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	key := fmt.Sprintf("job:%s", job.ID)
	return c.client.Set(ctx, key, data, ttl).Err()
}

// GetJob retrieves job status from cache
func (c *Cache) GetJob(ctx context.Context, jobID string) (*models.ConversionJob, error) {
	key := fmt.Sprintf("job:%s", jobID)
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Cache miss
		}
		return nil, fmt.Errorf("failed to get job from cache: %w", err)
	}

	var job models.ConversionJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}

	return &job, nil
}

// DeleteJob removes job from cache
func (c *Cache) DeleteJob(ctx context.Context, jobID string) error {
	key := fmt.Sprintf("job:%s", jobID)
	return c.client.Del(ctx, key).Err()
}

// SetWithJSON sets a value with JSON marshaling
func (c *Cache) SetWithJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

// Health check
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
