//go:build integration

package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/huddleboard/huddle/pkg/board"
)

const redisPort = nat.Port("6379/tcp")

// BoardEnvironment is an isolated integration test environment backed by a
// containerized Redis. Each environment gets a unique board name so parallel
// tests sharing a container never collide.
type BoardEnvironment struct {
	T         *testing.T
	Ctx       context.Context
	BoardName string
	RedisAddr string

	container testcontainers.Container
}

// SetupBoardEnvironment starts a Redis container and returns an environment
// scoped to a fresh board. The container is terminated on test cleanup.
func SetupBoardEnvironment(t *testing.T) *BoardEnvironment {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{string(redisPort)},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "Failed to start Redis container")

	host, err := redisC.Host(ctx)
	require.NoError(t, err, "Failed to get container host")

	port, err := redisC.MappedPort(ctx, redisPort)
	require.NoError(t, err, "Failed to get container port")

	env := &BoardEnvironment{
		T:         t,
		Ctx:       ctx,
		BoardName: fmt.Sprintf("test-board-%s", time.Now().Format("20060102-150405-000000")),
		RedisAddr: fmt.Sprintf("%s:%s", host, port.Port()),
		container: redisC,
	}

	t.Cleanup(func() {
		if err := redisC.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate Redis container: %v", err)
		}
	})

	return env
}

// NewBoardClient connects a fresh client to this environment's board.
// Closed on test cleanup.
func (env *BoardEnvironment) NewBoardClient() *board.Client {
	client, err := board.NewClient(&redis.Options{Addr: env.RedisAddr}, env.BoardName)
	require.NoError(env.T, err, "Failed to create board client")
	env.T.Cleanup(func() { client.Close() })
	return client
}

// SeedConfig writes a board config, usually before any session connects.
func (env *BoardEnvironment) SeedConfig(config *board.BoardConfig) {
	client := env.NewBoardClient()
	require.NoError(env.T, client.UpdateConfig(env.Ctx, config), "Failed to seed board config")
}

// WaitForItem polls the board for an item matching the predicate (up to 10
// seconds) and returns it.
func (env *BoardEnvironment) WaitForItem(client *board.Client, match func(*board.Item) bool) *board.Item {
	env.T.Helper()

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		items, err := client.FetchItems(env.Ctx)
		if err == nil {
			for _, item := range items {
				if match(item) {
					return item
				}
			}
		}
		time.Sleep(100 * time.Millisecond)
	}

	require.Fail(env.T, "Item not found within 10 seconds")
	return nil
}
