//go:build integration

package main_test

import (
	"context"
	"fmt"
	"net"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	"go.uber.org/zap"

	"github.com/NaviWasm/service-mapview/internal/animation"
	"github.com/NaviWasm/service-mapview/internal/application"
	"github.com/NaviWasm/service-mapview/internal/events"
	"github.com/NaviWasm/service-mapview/internal/handler"
	"github.com/NaviWasm/service-mapview/internal/overlay"
	"github.com/NaviWasm/service-mapview/internal/repository"
	"github.com/NaviWasm/service-mapview/internal/routing"
)

// testInfra holds shared test infrastructure.
type testInfra struct {
	KafkaBrokers []string
	Cleanup      func()
}

// viewStack holds wired-up map view service components.
type viewStack struct {
	Service          *application.ViewService
	RouteService     *httptest.Server
	CleanupPublisher func()
}

// setupContainers starts a Kafka testcontainer and pre-creates the route events topic.
func setupContainers(t *testing.T) *testInfra {
	t.Helper()
	ctx := context.Background()

	// Start Kafka container using confluent-local (supports KRaft natively).
	kafkaContainer, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "failed to start Kafka container")

	kafkaBrokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "failed to get Kafka brokers")

	createTopics(t, kafkaBrokers, events.TopicRouteEvents)

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Kafka container: %v", err)
		}
	}

	return &testInfra{
		KafkaBrokers: kafkaBrokers,
		Cleanup:      cleanup,
	}
}

// setupViewStack wires the view service to a Kafka publisher and to a route
// service backed by routeHandler.
func setupViewStack(t *testing.T, brokers []string, routeHandler gin.HandlerFunc) *viewStack {
	t.Helper()
	logger, _ := zap.NewDevelopment()

	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.POST(routing.DefaultPath, routeHandler)
	routeSrv := httptest.NewServer(engine)

	client, err := routing.NewClient(routing.Config{BaseURL: routeSrv.URL, Timeout: 5 * time.Second}, routing.WithLogger(logger))
	require.NoError(t, err)

	publisher := events.NewKafkaPublisher(brokers, events.TopicRouteEvents, logger)
	svc := application.NewViewService(
		repository.NewMemoryViewRepository(),
		client,
		publisher,
		application.ViewServiceConfig{MaxViews: 10, AnimationDuration: time.Second, Overlay: overlay.DefaultOptions()},
		logger,
		application.WithDisplayFactory(func() animation.Display { return animation.NewRefreshDisplay(60) }),
	)

	return &viewStack{
		Service:      svc,
		RouteService: routeSrv,
		CleanupPublisher: func() {
			_ = svc.Shutdown(context.Background())
			routeSrv.Close()
			_ = publisher.Close()
		},
	}
}

// stubRouteHandler serves the direct route like the development stub.
func stubRouteHandler() gin.HandlerFunc {
	metrics := application.NewMetrics()
	return handler.NewNavigationHandler(application.NewNavigationService(metrics, nil)).CalculateRoute
}

// consumeOneEvent reads from a Kafka topic until it finds an event of the expected type.
func consumeOneEvent(t *testing.T, brokers []string, topic, expectedType string, timeout time.Duration) events.CloudEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	groupID := fmt.Sprintf("test-assert-%s", uuid.New().String()[:8])
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafkago.FirstOffset,
	})
	defer func() { _ = reader.Close() }()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				t.Fatalf("timed out waiting for event type %q on topic %q", expectedType, topic)
			}
			continue
		}
		ce, err := events.ParseCloudEvent(msg.Value)
		if err != nil {
			continue
		}
		if ce.Type == expectedType {
			return ce
		}
	}
}

// createTopics pre-creates Kafka topics so producers don't fail with "Unknown Topic".
func createTopics(t *testing.T, brokers []string, topics ...string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", brokers[0])
	require.NoError(t, err, "failed to dial Kafka for topic creation")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "failed to get Kafka controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, fmt.Sprintf("%d", controller.Port)))
	require.NoError(t, err, "failed to connect to Kafka controller")
	defer controllerConn.Close()

	topicConfigs := make([]kafkago.TopicConfig, len(topics))
	for i, topic := range topics {
		topicConfigs[i] = kafkago.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
	}
	err = controllerConn.CreateTopics(topicConfigs...)
	require.NoError(t, err, "failed to create Kafka topics")

	// Give Kafka a moment to propagate topic metadata.
	time.Sleep(1 * time.Second)
}
