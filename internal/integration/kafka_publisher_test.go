//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	kafkaadapter "github.com/couchcryptid/forecast-fusion-service/internal/adapter/kafka"
	"github.com/couchcryptid/forecast-fusion-service/internal/config"
	"github.com/couchcryptid/forecast-fusion-service/internal/domain"
)

const (
	testForecastTopic = "test-forecasts"
	testAlertTopic    = "test-alerts"
)

// startKafka launches a single-node broker and returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("test-cluster"))
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err, "start kafka container")

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err, "resolve broker addresses")
	require.NotEmpty(t, brokers)
	return brokers[0]
}

// createTopic creates a single-partition topic via the cluster controller.
// The publisher does not auto-create topics, so tests must.
func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err, "dial broker")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "resolve controller")

	ctrlConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err, "dial controller")
	defer ctrlConn.Close()

	require.NoError(t, ctrlConn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}), "create topic %s", topic)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newConsumer(t *testing.T, broker, topic string) *kafkago.Reader {
	t.Helper()
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       topic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })
	return consumer
}

// publishedRecord holds a message read back from a topic.
type publishedRecord struct {
	Key     string
	Headers map[string]string
	Value   []byte
}

// readRecord reads a single message from the consumer.
func readRecord(ctx context.Context, t *testing.T, consumer *kafkago.Reader) publishedRecord {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read published record")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	return publishedRecord{
		Key:     string(msg.Key),
		Headers: headers,
		Value:   msg.Value,
	}
}

// TestPublisherForecastRoundTrip verifies that a cycle's forecast batch
// arrives on the forecast topic keyed by forecast ID with routing headers
// intact.
func TestPublisherForecastRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testForecastTopic)
	createTopic(t, broker, testAlertTopic)

	pub := kafkaadapter.NewPublisher(config.KafkaConfig{
		Enabled:       true,
		Brokers:       []string{broker},
		ForecastTopic: testForecastTopic,
		AlertTopic:    testAlertTopic,
	}, discardLogger())
	t.Cleanup(func() { _ = pub.Close() })

	issued := time.Date(2024, 7, 12, 12, 0, 0, 0, time.UTC)
	forecasts := []domain.Forecast{
		{
			ID:         domain.ForecastID("xuancheng", "1h", issued),
			CycleID:    domain.CycleID(issued),
			Region:     "xuancheng",
			HorizonID:  "1h",
			IssuedAt:   issued,
			ValidAt:    issued.Add(time.Hour),
			Point:      domain.Parameters{domain.ParamTemperature: 28.5, domain.ParamPrecipitationRate: 2.0},
			Lower:      domain.Parameters{domain.ParamTemperature: 26.1, domain.ParamPrecipitationRate: 0},
			Upper:      domain.Parameters{domain.ParamTemperature: 30.9, domain.ParamPrecipitationRate: 4.8},
			Confidence: 0.95,
			Source:     domain.SourceLocal,
		},
		{
			ID:         domain.ForecastID("xuanzhou", "1day", issued),
			CycleID:    domain.CycleID(issued),
			Region:     "xuanzhou",
			HorizonID:  "1day",
			IssuedAt:   issued,
			ValidAt:    issued.Add(24 * time.Hour),
			Point:      domain.Parameters{domain.ParamTemperature: 24.0},
			Lower:      domain.Parameters{domain.ParamTemperature: 21.5},
			Upper:      domain.Parameters{domain.ParamTemperature: 26.5},
			Confidence: 0.95,
			Source:     domain.SourceRemote,
		},
	}

	require.NoError(t, pub.PublishForecasts(ctx, forecasts))

	consumer := newConsumer(t, broker, testForecastTopic)
	received := make(map[string]publishedRecord, len(forecasts))
	for range forecasts {
		rec := readRecord(ctx, t, consumer)
		received[rec.Key] = rec
	}

	for _, want := range forecasts {
		rec, ok := received[want.ID]
		require.True(t, ok, "no record keyed by %s", want.ID)

		assert.Equal(t, want.Region, rec.Headers["region"])
		assert.Equal(t, want.HorizonID, rec.Headers["horizon"])
		assert.Equal(t, string(want.Source), rec.Headers["source"])
		assert.Equal(t, issued.Format(time.RFC3339), rec.Headers["issued_at"])

		var got domain.Forecast
		require.NoError(t, json.Unmarshal(rec.Value, &got), "unmarshal forecast record")
		assert.Equal(t, want.ID, got.ID)
		assert.Equal(t, want.CycleID, got.CycleID)
		assert.Equal(t, want.Region, got.Region)
		assert.True(t, got.ValidAt.Equal(want.ValidAt), "valid_at should survive the round trip")
		assert.InDelta(t, want.Point[domain.ParamTemperature], got.Point[domain.ParamTemperature], 1e-9)
		assert.InDelta(t, want.Confidence, got.Confidence, 1e-9)
	}
}

// TestPublisherAlertAndClosureRoundTrip verifies that alert and closure
// records share the alert topic and are told apart by the record_type
// header, with the closure keyed by the alert it closes.
func TestPublisherAlertAndClosureRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testForecastTopic)
	createTopic(t, broker, testAlertTopic)

	pub := kafkaadapter.NewPublisher(config.KafkaConfig{
		Enabled:       true,
		Brokers:       []string{broker},
		ForecastTopic: testForecastTopic,
		AlertTopic:    testAlertTopic,
	}, discardLogger())
	t.Cleanup(func() { _ = pub.Close() })

	windowStart := time.Date(2024, 7, 12, 8, 0, 0, 0, time.UTC)
	key := domain.NewDedupKey("xuancheng", domain.EventHeavyRain, windowStart)
	a := domain.Alert{
		ID:               domain.AlertID(key, domain.LevelOrange),
		Region:           "xuancheng",
		Type:             domain.EventHeavyRain,
		Level:            domain.LevelOrange,
		SeverityScore:    3,
		WindowStart:      windowStart,
		WindowEnd:        windowStart.Add(3 * time.Hour),
		TriggeringValues: domain.Parameters{domain.ParamPrecipitationRate: 62.4},
		IssuedAt:         windowStart.Add(-time.Hour),
		Message:          "heavy_rain expected in xuancheng",
	}
	c := domain.Closure{
		AlertID:     a.ID,
		Region:      a.Region,
		Type:        a.Type,
		WindowStart: a.WindowStart,
		ClosedAt:    a.WindowEnd.Add(time.Hour),
	}

	require.NoError(t, pub.Emit(ctx, a))
	require.NoError(t, pub.EmitClosure(ctx, c))

	// Single partition, so records arrive in publish order.
	consumer := newConsumer(t, broker, testAlertTopic)

	alertRec := readRecord(ctx, t, consumer)
	assert.Equal(t, a.ID, alertRec.Key)
	assert.Equal(t, "alert", alertRec.Headers["record_type"])
	assert.Equal(t, "heavy_rain", alertRec.Headers["event_type"])
	assert.Equal(t, "orange", alertRec.Headers["level"])
	assert.Equal(t, "xuancheng", alertRec.Headers["region"])

	var gotAlert domain.Alert
	require.NoError(t, json.Unmarshal(alertRec.Value, &gotAlert), "unmarshal alert record")
	assert.Equal(t, a.ID, gotAlert.ID)
	assert.Equal(t, domain.LevelOrange, gotAlert.Level)
	assert.InDelta(t, 3, gotAlert.SeverityScore, 1e-9)
	assert.True(t, gotAlert.WindowStart.Equal(a.WindowStart))
	assert.InDelta(t, 62.4, gotAlert.TriggeringValues[domain.ParamPrecipitationRate], 1e-9)
	assert.Equal(t, a.Message, gotAlert.Message)

	closureRec := readRecord(ctx, t, consumer)
	assert.Equal(t, a.ID, closureRec.Key)
	assert.Equal(t, "closure", closureRec.Headers["record_type"])
	assert.Equal(t, "heavy_rain", closureRec.Headers["event_type"])
	assert.Equal(t, "xuancheng", closureRec.Headers["region"])

	var gotClosure domain.Closure
	require.NoError(t, json.Unmarshal(closureRec.Value, &gotClosure), "unmarshal closure record")
	assert.Equal(t, a.ID, gotClosure.AlertID)
	assert.True(t, gotClosure.ClosedAt.Equal(c.ClosedAt))
}
