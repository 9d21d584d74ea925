package repositories

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/you/gatekeeper/domain"
)

// RedisApprovalRegistry implements domain.ApprovalRegistry on a Redis
// set. Selected when a redis address is configured; durability then
// comes from Redis itself rather than the snapshot document.
type RedisApprovalRegistry struct {
	client *redis.Client
	key    string
}

// NewRedisApprovalRegistry creates a Redis-backed registry.
func NewRedisApprovalRegistry(client *redis.Client) *RedisApprovalRegistry {
	return &RedisApprovalRegistry{client: client, key: "gatekeeper:approved"}
}

// Add implements domain.ApprovalRegistry.
func (r *RedisApprovalRegistry) Add(ctx context.Context, userID int64) error {
	if err := r.client.SAdd(ctx, r.key, userID).Err(); err != nil {
		return fmt.Errorf("failed to add approval to redis: %w", err)
	}
	return nil
}

// Contains implements domain.ApprovalRegistry.
func (r *RedisApprovalRegistry) Contains(ctx context.Context, userID int64) (bool, error) {
	ok, err := r.client.SIsMember(ctx, r.key, userID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check approval in redis: %w", err)
	}
	return ok, nil
}

// Members implements domain.ApprovalRegistry.
func (r *RedisApprovalRegistry) Members(ctx context.Context) ([]int64, error) {
	raw, err := r.client.SMembers(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list approvals from redis: %w", err)
	}
	out := make([]int64, 0, len(raw))
	for _, member := range raw {
		id, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt approval member %q: %w", member, err)
		}
		out = append(out, id)
	}
	return out, nil
}

// Count implements domain.ApprovalRegistry.
func (r *RedisApprovalRegistry) Count(ctx context.Context) (int, error) {
	n, err := r.client.SCard(ctx, r.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count approvals in redis: %w", err)
	}
	return int(n), nil
}

var _ domain.ApprovalRegistry = (*RedisApprovalRegistry)(nil)
