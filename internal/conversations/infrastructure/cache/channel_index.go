package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ChannelIndex maps external channel ids to conversation ids.
type ChannelIndex interface {
	// Lookup returns false when the channel is not indexed.
	Lookup(ctx context.Context, tenantID uuid.UUID, channelID string) (uuid.UUID, bool, error)
	Store(ctx context.Context, tenantID uuid.UUID, channelID string, conversationID uuid.UUID) error
	Forget(ctx context.Context, tenantID uuid.UUID, channelID string) error
}

func channelKey(tenantID uuid.UUID, channelID string) string {
	return fmt.Sprintf("talentreach:channel:%s:%s", tenantID, channelID)
}

// RedisChannelIndex stores the index in Redis with a TTL.
type RedisChannelIndex struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisChannelIndex creates a Redis-backed channel index.
func NewRedisChannelIndex(client *redis.Client, ttl time.Duration) *RedisChannelIndex {
	return &RedisChannelIndex{client: client, ttl: ttl}
}

// Lookup reads the conversation id for a channel.
func (i *RedisChannelIndex) Lookup(ctx context.Context, tenantID uuid.UUID, channelID string) (uuid.UUID, bool, error) {
	val, err := i.client.Get(ctx, channelKey(tenantID, channelID)).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("redis get failed: %w", err)
	}
	id, err := uuid.Parse(val)
	if err != nil {
		return uuid.Nil, false, nil
	}
	return id, true, nil
}

// Store indexes a channel.
func (i *RedisChannelIndex) Store(ctx context.Context, tenantID uuid.UUID, channelID string, conversationID uuid.UUID) error {
	if err := i.client.Set(ctx, channelKey(tenantID, channelID), conversationID.String(), i.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Forget drops a channel from the index.
func (i *RedisChannelIndex) Forget(ctx context.Context, tenantID uuid.UUID, channelID string) error {
	if err := i.client.Del(ctx, channelKey(tenantID, channelID)).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

// InMemoryChannelIndex is used when no Redis is configured. It does not
// expire entries.
type InMemoryChannelIndex struct {
	mu      sync.RWMutex
	entries map[string]uuid.UUID
}

// NewInMemoryChannelIndex creates an empty in-memory index.
func NewInMemoryChannelIndex() *InMemoryChannelIndex {
	return &InMemoryChannelIndex{entries: make(map[string]uuid.UUID)}
}

func (i *InMemoryChannelIndex) Lookup(_ context.Context, tenantID uuid.UUID, channelID string) (uuid.UUID, bool, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	id, ok := i.entries[channelKey(tenantID, channelID)]
	return id, ok, nil
}

func (i *InMemoryChannelIndex) Store(_ context.Context, tenantID uuid.UUID, channelID string, conversationID uuid.UUID) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.entries[channelKey(tenantID, channelID)] = conversationID
	return nil
}

func (i *InMemoryChannelIndex) Forget(_ context.Context, tenantID uuid.UUID, channelID string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.entries, channelKey(tenantID, channelID))
	return nil
}
