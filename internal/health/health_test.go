package health

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
)

func TestRedisChecker_ContextCancellation(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
	})
	defer client.Close()

	checker := NewRedisChecker(client)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := checker.HealthCheck(ctx); err == nil {
		t.Error("expected error from cancelled context")
	}
}

func TestCheckerInterface(t *testing.T) {
	// Both checkers must satisfy the Checker interface the readiness
	// handler depends on.
	var _ Checker = (*DBChecker)(nil)
	var _ Checker = (*RedisChecker)(nil)
}
