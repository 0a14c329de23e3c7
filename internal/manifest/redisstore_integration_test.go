package manifest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestRedisStore spins up a throwaway Redis container. Run with -short to
// skip when Docker is unavailable.
func TestRedisStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping Redis integration test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start redis container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatal(err)
	}

	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisStore(client, time.Hour)

	m := testManifest("run-redis")
	if err := store.Put(ctx, m); err != nil {
		t.Fatal(err)
	}
	got, err := store.Get(ctx, "run-redis")
	if err != nil {
		t.Fatal(err)
	}
	if got.Created[0] != "P-1" || got.UIDMap["e1"] != "P-1" {
		t.Errorf("round trip lost data: %+v", got)
	}

	if _, err := store.Get(ctx, "run-missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}

	// The stored key must carry a TTL so expiry is Redis's job.
	ttl, err := client.TTL(ctx, redisKey("run-redis")).Result()
	if err != nil {
		t.Fatal(err)
	}
	if ttl <= 0 || ttl > time.Hour {
		t.Errorf("ttl = %v, want (0, 1h]", ttl)
	}
}
