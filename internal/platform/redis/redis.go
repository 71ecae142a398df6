package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultDialTimeout = 5 * time.Second

// Client wraps the go-redis client shared by the store, sinks and workers.
type Client struct {
	*redis.Client
}

// Open creates a client and pings it to validate the connection.
func Open(ctx context.Context, addr, password string, db int) (*Client, error) {
	if addr == "" {
		return nil, fmt.Errorf("empty redis addr")
	}
	c := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: defaultDialTimeout,
	})
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}
	return &Client{Client: c}, nil
}

// Check pings the server; it backs the readiness probe.
func (c *Client) Check(ctx context.Context) error {
	return c.Ping(ctx).Err()
}
