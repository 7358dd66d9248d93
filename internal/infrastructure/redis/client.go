package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedPrefix = "swiftmeds:revoked:"

// Message is one pub/sub delivery
type Message struct {
	Channel string
	Payload string
}

// Client wraps the Redis client with our custom methods
type Client struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// NewClient creates a new Redis client and checks connectivity
func NewClient(url string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb, logger: logger}, nil
}

// Publish sends payload on channel
func (c *Client) Publish(ctx context.Context, channel string, payload []byte) error {
	return c.rdb.Publish(ctx, channel, payload).Err()
}

// PSubscribe subscribes to channels matching pattern. Messages arrive on the
// returned channel until the close func is called or ctx ends.
func (c *Client) PSubscribe(ctx context.Context, pattern string) (<-chan Message, func() error, error) {
	ps := c.rdb.PSubscribe(ctx, pattern)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("failed to subscribe to %s: %w", pattern, err)
	}

	out := make(chan Message)
	go func() {
		defer close(out)
		for msg := range ps.Channel() {
			select {
			case out <- Message{Channel: msg.Channel, Payload: msg.Payload}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, ps.Close, nil
}

// Revoke marks a token id as revoked until ttl elapses
func (c *Client) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	return c.rdb.Set(ctx, revokedPrefix+tokenID, 1, ttl).Err()
}

// IsRevoked reports whether Revoke was called for tokenID and has not expired
func (c *Client) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	err := c.rdb.Get(ctx, revokedPrefix+tokenID).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		c.logger.Warn("revocation lookup failed", slog.String("error", err.Error()))
		return false, err
	}
	return true, nil
}

// Ping checks connectivity
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}
