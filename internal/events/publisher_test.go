package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/NaviWasm/service-mapview/internal/domain/geo"
)

type fakeWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisher_PublishWrapsCloudEvent(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w, logger: zap.NewNop()}

	viewID := uuid.New()
	p.Publish(context.Background(), RouteEvent{
		Type:              RouteCalculated,
		ViewID:            viewID,
		Generation:        3,
		Start:             geo.Coordinate{Latitude: 40.7128, Longitude: -74.006},
		End:               geo.Coordinate{Latitude: 34.0522, Longitude: -118.2437},
		Vertices:          2,
		DistanceKm:        3935.75,
		CalculationTimeMs: 12.5,
		TimingSource:      "server",
	})

	require.Len(t, w.msgs, 1)
	assert.Equal(t, viewID.String(), string(w.msgs[0].Key))

	ce, err := ParseCloudEvent(w.msgs[0].Value)
	require.NoError(t, err)
	assert.Equal(t, "1.0", ce.SpecVersion)
	assert.Equal(t, eventSource, ce.Source)
	assert.Equal(t, RouteCalculated, ce.Type)
	assert.Equal(t, viewID.String(), ce.Subject)
	assert.NotEmpty(t, ce.ID)

	var got RouteEvent
	require.NoError(t, ce.ParseData(&got))
	assert.Equal(t, viewID, got.ViewID)
	assert.Equal(t, uint64(3), got.Generation)
	assert.Equal(t, 2, got.Vertices)
	assert.Equal(t, "server", got.TimingSource)
	assert.False(t, got.OccurredAt.IsZero())
}

func TestKafkaPublisher_WriteErrorIsSwallowed(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := &KafkaPublisher{writer: w, logger: zap.NewNop()}

	assert.NotPanics(t, func() {
		p.Publish(context.Background(), RouteEvent{Type: RouteFailed, ViewID: uuid.New(), ErrorKind: "network_failure"})
	})
	assert.Empty(t, w.msgs)
}

func TestKafkaPublisher_Close(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w, logger: zap.NewNop()}
	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestParseCloudEvent_Invalid(t *testing.T) {
	_, err := ParseCloudEvent([]byte("not json"))
	assert.Error(t, err)

	_, err = ParseCloudEvent([]byte(`{"specversion":"1.0"}`))
	assert.Error(t, err)
}

func TestNewCloudEvent_PreservesOccurredAt(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	ce, err := NewCloudEvent(eventSource, RouteStale, RouteEvent{OccurredAt: at})
	require.NoError(t, err)

	var got RouteEvent
	require.NoError(t, ce.ParseData(&got))
	assert.True(t, at.Equal(got.OccurredAt))
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NotPanics(t, func() { p.Publish(context.Background(), RouteEvent{}) })
}
