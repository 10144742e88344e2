//go:build integration
// +build integration

package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/alchemorsel/recipe-studio/internal/infrastructure/messaging"
	"github.com/alchemorsel/recipe-studio/internal/ports/outbound"
)

// RedisBusSuite runs the change feed bus against a real Redis
type RedisBusSuite struct {
	suite.Suite
	container testcontainers.Container
	client    *redis.Client
	bus       *messaging.RedisBus
}

func (suite *RedisBusSuite) SetupSuite() {
	if testing.Short() {
		suite.T().Skip("integration tests need docker")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(suite.T(), err, "Failed to start redis container")
	suite.container = container

	host, err := container.Host(ctx)
	require.NoError(suite.T(), err)
	port, err := container.MappedPort(ctx, nat.Port("6379"))
	require.NoError(suite.T(), err)

	suite.client = redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	suite.bus = messaging.NewRedisBus(suite.client, "test:", zap.NewNop())
}

func (suite *RedisBusSuite) TearDownSuite() {
	if suite.client != nil {
		_ = suite.client.Close()
	}
	if suite.container != nil {
		_ = suite.container.Terminate(context.Background())
	}
}

func (suite *RedisBusSuite) subscribers(topic string) int64 {
	counts, err := suite.client.PubSubNumSub(context.Background(), "test:"+topic).Result()
	require.NoError(suite.T(), err)
	return counts["test:"+topic]
}

func (suite *RedisBusSuite) TestSubscribe() {
	suite.Run("Publish_ShouldReachSubscriber", func() {
		received := make(chan outbound.Message, 1)
		unsubscribe, err := suite.bus.Subscribe(context.Background(), "recipes.delivery", func(_ context.Context, m outbound.Message) error {
			received <- m
			return nil
		})
		require.NoError(suite.T(), err)
		defer unsubscribe()

		require.NoError(suite.T(), suite.bus.Publish(context.Background(), "recipes.delivery",
			outbound.Message{ID: "1", Type: "recipe.saved", Payload: []byte(`{"id":"1"}`)}))

		select {
		case m := <-received:
			assert.Equal(suite.T(), "recipe.saved", m.Type)
			assert.JSONEq(suite.T(), `{"id":"1"}`, string(m.Payload))
		case <-time.After(5 * time.Second):
			suite.T().Fatal("message not delivered")
		}
	})

	suite.Run("ContextEnd_ShouldCloseSubscription", func() {
		ctx, cancel := context.WithCancel(context.Background())
		unsubscribe, err := suite.bus.Subscribe(ctx, "recipes.cancel", func(context.Context, outbound.Message) error {
			return nil
		})
		require.NoError(suite.T(), err)
		defer unsubscribe()
		require.Equal(suite.T(), int64(1), suite.subscribers("recipes.cancel"))

		cancel()

		assert.Eventually(suite.T(), func() bool {
			return suite.subscribers("recipes.cancel") == 0
		}, 5*time.Second, 50*time.Millisecond)
	})
}

func TestRedisBusSuite(t *testing.T) {
	suite.Run(t, new(RedisBusSuite))
}
