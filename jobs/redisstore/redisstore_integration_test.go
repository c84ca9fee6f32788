//go:build integration

package redisstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"toolhub.dev/hub"
)

// startRedisContainer mirrors the donor's health_tracker_integration_test.go
// TestMain container bring-up, scoped to a single test instead of a
// package-wide TestMain since this package has only one integration suite.
func startRedisContainer(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("docker not available, skipping integration test: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	require.NoError(t, client.Ping(ctx).Err())
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestStorePutGetListDeleteRoundTrip(t *testing.T) {
	client := startRedisContainer(t)
	store := New(client, "toolhub:jobs:test", nil)

	job := toolhub.Job{
		JobID: "job-1", ToolName: "demo/slow", Status: toolhub.JobStatusQueued,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		UpdatedAt: time.Now().UTC().Truncate(time.Second),
	}
	store.Put(job)

	got, ok := store.Get("job-1")
	require.True(t, ok)
	require.Equal(t, job.JobID, got.JobID)
	require.Equal(t, job.Status, got.Status)

	all := store.List()
	require.Len(t, all, 1)

	store.Delete("job-1")
	_, ok = store.Get("job-1")
	require.False(t, ok)
}
