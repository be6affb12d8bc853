// Package kafka publishes issued forecasts and alerts to Kafka topics for
// downstream consumers. The alert topic carries both alert and closure
// records, discriminated by a record_type header.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/forecast-fusion-service/internal/config"
	"github.com/couchcryptid/forecast-fusion-service/internal/domain"
)

// Publisher produces forecast and alert records. It implements alert.Sink
// for the alert side; forecasts are published by the engine after each
// cycle.
type Publisher struct {
	forecasts *kafkago.Writer
	alerts    *kafkago.Writer
	logger    *slog.Logger
}

// NewPublisher creates producers for the configured topics.
func NewPublisher(cfg config.KafkaConfig, logger *slog.Logger) *Publisher {
	newWriter := func(topic string) *kafkago.Writer {
		return &kafkago.Writer{
			Addr:         kafkago.TCP(cfg.Brokers...),
			Topic:        topic,
			Balancer:     &kafkago.LeastBytes{},
			RequiredAcks: kafkago.RequireAll,
		}
	}
	return &Publisher{
		forecasts: newWriter(cfg.ForecastTopic),
		alerts:    newWriter(cfg.AlertTopic),
		logger:    logger,
	}
}

// PublishForecasts serializes and publishes one cycle's forecasts in a
// single WriteMessages call.
func (p *Publisher) PublishForecasts(ctx context.Context, forecasts []domain.Forecast) error {
	if len(forecasts) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(forecasts))
	for i := range forecasts {
		msg, err := forecastMessage(forecasts[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return p.forecasts.WriteMessages(ctx, msgs...)
}

// Name implements alert.Sink.
func (p *Publisher) Name() string {
	return "kafka"
}

// Emit implements alert.Sink.
func (p *Publisher) Emit(ctx context.Context, a domain.Alert) error {
	msg, err := alertMessage(a)
	if err != nil {
		return err
	}
	return p.alerts.WriteMessages(ctx, msg)
}

// EmitClosure implements alert.Sink.
func (p *Publisher) EmitClosure(ctx context.Context, c domain.Closure) error {
	msg, err := closureMessage(c)
	if err != nil {
		return err
	}
	return p.alerts.WriteMessages(ctx, msg)
}

// Close shuts down both producers.
func (p *Publisher) Close() error {
	return errors.Join(p.forecasts.Close(), p.alerts.Close())
}

// forecastMessage marshals a Forecast into a Kafka message keyed by its
// deterministic ID, so compacted topics retain one record per forecast.
func forecastMessage(fc domain.Forecast) (kafkago.Message, error) {
	data, err := json.Marshal(fc)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize forecast: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(fc.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "region", Value: []byte(fc.Region)},
			{Key: "horizon", Value: []byte(fc.HorizonID)},
			{Key: "source", Value: []byte(fc.Source)},
			{Key: "issued_at", Value: []byte(fc.IssuedAt.Format(time.RFC3339))},
		},
	}, nil
}

// alertMessage marshals an Alert into a Kafka message.
func alertMessage(a domain.Alert) (kafkago.Message, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize alert: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(a.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "record_type", Value: []byte("alert")},
			{Key: "event_type", Value: []byte(a.Type)},
			{Key: "level", Value: []byte(a.Level.String())},
			{Key: "region", Value: []byte(a.Region)},
		},
	}, nil
}

// closureMessage marshals a Closure into a Kafka message keyed by the
// closed alert's ID.
func closureMessage(c domain.Closure) (kafkago.Message, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize closure: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(c.AlertID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "record_type", Value: []byte("closure")},
			{Key: "event_type", Value: []byte(c.Type)},
			{Key: "region", Value: []byte(c.Region)},
		},
	}, nil
}
