// Package redisclient wraps the redis client used for distributed
// locking and leader election (internal/lock, internal/jobs).
package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hiveboardgame/realtime/internal/logging"
)

var log = logging.New("redis")

// Config holds Redis connection configuration.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Client wraps *redis.Client so callers don't need to import go-redis
// directly outside this package and internal/lock.
type Client struct {
	*redis.Client
}

// New dials Redis and verifies the connection with a PING.
func New(cfg Config) (*Client, error) {
	log.Printf("connecting to redis at %s...", cfg.Addr)

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("connected to redis at %s", cfg.Addr)
	return &Client{Client: client}, nil
}

// Close closes the underlying connection pool.
func (c *Client) Close() error {
	log.Println("closing redis connection")
	return c.Client.Close()
}

// HealthCheck pings Redis with the given context.
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.Ping(ctx).Err()
}
