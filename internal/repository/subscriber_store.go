package repository

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

// subscriberSetKey is the Redis set holding opted-in chat ids.
const subscriberSetKey = "railbot:subscribers"

// SubscriberStore is the opt-in set of chat ids that receive operational
// broadcast notices.  Adds are idempotent.  When a Redis client is available
// the set survives restarts; with a nil client the store degrades to an
// in-process set, mirroring how the rate limiter degrades without Redis.
type SubscriberStore struct {
	rdb *redis.Client

	mu  sync.Mutex
	mem map[string]bool
}

// NewSubscriberStore returns a store backed by rdb, or by process memory
// when rdb is nil.
func NewSubscriberStore(rdb *redis.Client) *SubscriberStore {
	return &SubscriberStore{rdb: rdb, mem: make(map[string]bool)}
}

// Add subscribes a chat id.  The boolean is true when the id was not already
// subscribed.
func (s *SubscriberStore) Add(ctx context.Context, chatID string) (bool, error) {
	if s.rdb != nil {
		n, err := s.rdb.SAdd(ctx, subscriberSetKey, chatID).Result()
		if err == nil {
			return n > 0, nil
		}
		// fall through to memory on Redis failure
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mem[chatID] {
		return false, nil
	}
	s.mem[chatID] = true
	return true, nil
}

// Members returns a snapshot of all subscribed chat ids.
func (s *SubscriberStore) Members(ctx context.Context) ([]string, error) {
	if s.rdb != nil {
		ids, err := s.rdb.SMembers(ctx, subscriberSetKey).Result()
		if err == nil {
			return ids, nil
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.mem))
	for id := range s.mem {
		ids = append(ids, id)
	}
	return ids, nil
}
