// Package session provides the Redis-backed ticket store used for the
// collaboration socket handshake. An authenticated client exchanges its
// bearer token for a short-lived single-use ticket over HTTP and presents
// the ticket in the WebSocket URL; the socket handler redeems it.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"prdhub/api/internal/util"

	"github.com/redis/go-redis/v9"
)

// ErrTicketNotFound means the ticket was never issued, already redeemed, or
// expired. The caller cannot tell which; all three present as a failed
// handshake.
var ErrTicketNotFound = errors.New("ticket not found or expired")

// ticketData is the value stored for each ticket
type ticketData struct {
	UserID   string    `json:"user_id"`
	IssuedAt time.Time `json:"issued_at"`
}

// RedisStore implements ticket storage using Redis
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a new Redis-backed ticket store
func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client, ttl), nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client
func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &RedisStore{
		client: client,
		prefix: "collab:ticket:",
		ttl:    ttl,
	}
}

func (s *RedisStore) key(ticket string) string {
	return s.prefix + ticket
}

// Issue mints a ticket for the user and stores it with the configured TTL.
func (s *RedisStore) Issue(ctx context.Context, userID string) (string, error) {
	ticket := util.NewID("tkt")
	payload, err := json.Marshal(ticketData{UserID: userID, IssuedAt: time.Now().UTC()})
	if err != nil {
		return "", fmt.Errorf("marshal ticket: %w", err)
	}
	if err := s.client.Set(ctx, s.key(ticket), payload, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("save ticket: %w", err)
	}
	return ticket, nil
}

// Redeem consumes a ticket and returns the user id it was issued for.
// Tickets are single-use: a second redeem of the same ticket fails.
func (s *RedisStore) Redeem(ctx context.Context, ticket string) (string, error) {
	payload, err := s.client.GetDel(ctx, s.key(ticket)).Result()
	if err == redis.Nil {
		return "", ErrTicketNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redeem ticket: %w", err)
	}

	var data ticketData
	if err := json.Unmarshal([]byte(payload), &data); err != nil {
		return "", fmt.Errorf("unmarshal ticket: %w", err)
	}
	return data.UserID, nil
}

// Ping checks Redis connectivity
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}
