package support

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("BLOCKWATCH_TEST_REDIS_URL")
	if url == "" {
		t.Skip("BLOCKWATCH_TEST_REDIS_URL not set")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("parse redis url: %v", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestGenerateLeaderIDUnique(t *testing.T) {
	if generateLeaderID() == generateLeaderID() {
		t.Fatal("generateLeaderID returned the same value twice")
	}
}

func TestLeaderFunctionsRejectNilArguments(t *testing.T) {
	ctx := context.Background()
	if err := RunWithLeader(ctx, nil, "k", time.Second, func(context.Context) {}); err == nil {
		t.Fatal("RunWithLeader with nil client should fail")
	}
	if _, err := TryWithLeader(ctx, nil, "k", time.Second, nil); err == nil {
		t.Fatal("TryWithLeader with nil run should fail")
	}
}

func TestTryWithLeaderExcludesSecondHolder(t *testing.T) {
	client := testRedis(t)
	ctx := context.Background()
	key := "blockwatch:test:leader:" + t.Name()
	t.Cleanup(func() { client.Del(ctx, key) })

	var inner atomic.Bool
	ran, err := TryWithLeader(ctx, client, key, 5*time.Second, func(ctx context.Context) error {
		acquired, err := TryWithLeader(ctx, client, key, 5*time.Second, func(context.Context) error { return nil })
		if err != nil {
			return err
		}
		inner.Store(acquired)
		return nil
	})
	if err != nil {
		t.Fatalf("TryWithLeader returned error: %v", err)
	}
	if !ran {
		t.Fatal("outer TryWithLeader did not acquire the lock")
	}
	if inner.Load() {
		t.Fatal("inner TryWithLeader acquired a held lock")
	}

	if exists, _ := client.Exists(ctx, key).Result(); exists != 0 {
		t.Fatal("lock key still present after release")
	}
}

func TestRunWithLeaderStopsOnCancel(t *testing.T) {
	client := testRedis(t)
	key := "blockwatch:test:leader:" + t.Name()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() { client.Del(context.Background(), key) })

	done := make(chan error, 1)
	go func() {
		done <- RunWithLeader(ctx, client, key, 3*time.Second, func(runCtx context.Context) {
			cancel()
			<-runCtx.Done()
		})
	}()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("RunWithLeader returned %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("RunWithLeader did not return after cancel")
	}
}
