// Package events publishes trip lifecycle events to NATS JetStream and
// provisions the stream that carries them.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/lohun/driverlog/internal/config"
	"github.com/lohun/driverlog/internal/setup"
)

const probeName = "nats"

// Event types published on trip.* subjects.
const (
	TripCreated   = "trip.created"
	TripStarted   = "trip.started"
	TripCompleted = "trip.completed"
	TripCancelled = "trip.cancelled"
	TripLogAdded  = "trip.log_added"
)

// streamName carries every trip lifecycle event.
const streamName = "TRIP_EVENTS"

var streamConfig = &nats.StreamConfig{
	Name:      streamName,
	Subjects:  []string{"trip.*"},
	Retention: nats.LimitsPolicy,
	MaxAge:    168 * time.Hour,
}

// Event is the JSON payload published for each lifecycle change.
type Event struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	TripID   int64     `json:"trip_id"`
	DriverID int64     `json:"driver_id,omitempty"`
	At       time.Time `json:"at"`
}

// jsContext is the subset of nats.JetStreamContext used here. Defining an
// interface allows test doubles to be injected without a live NATS server.
type jsContext interface {
	StreamInfo(stream string, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	AddStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	UpdateStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// Publisher provisions the trip-event stream and publishes events to it.
// Connections are opened lazily per operation.
type Publisher struct {
	url   string
	newJS func(url string) (jsContext, func(), error)
}

// NewPublisher constructs a Publisher. No connection is made at construction
// time.
func NewPublisher(cfg config.NATSConfig) *Publisher {
	return &Publisher{
		url:   cfg.URL,
		newJS: realNewJS,
	}
}

// ProvisionStream creates or updates the TRIP_EVENTS stream. It is
// idempotent: an existing stream is updated rather than errored.
func (p *Publisher) ProvisionStream(ctx context.Context) error {
	js, cleanup, err := p.newJS(p.url)
	if err != nil {
		return fmt.Errorf("connecting to NATS: %w", err)
	}
	defer cleanup()

	_, err = js.StreamInfo(streamName)
	switch {
	case errors.Is(err, nats.ErrStreamNotFound):
		if _, addErr := js.AddStream(streamConfig); addErr != nil {
			return fmt.Errorf("creating stream %s: %w", streamName, addErr)
		}
	case err != nil:
		return fmt.Errorf("querying stream %s: %w", streamName, err)
	default:
		if _, updErr := js.UpdateStream(streamConfig); updErr != nil {
			return fmt.Errorf("updating stream %s: %w", streamName, updErr)
		}
	}
	return nil
}

// Publish emits a trip event. Failures are logged and swallowed — event
// delivery must never fail a trip operation.
func (p *Publisher) Publish(ctx context.Context, eventType string, tripID, driverID int64) {
	evt := Event{
		ID:       uuid.NewString(),
		Type:     eventType,
		TripID:   tripID,
		DriverID: driverID,
		At:       time.Now().UTC(),
	}

	if err := p.publish(evt); err != nil {
		slog.WarnContext(ctx, "publishing trip event failed",
			"type", eventType, "trip_id", tripID, "err", err)
		return
	}
	slog.DebugContext(ctx, "trip event published", "type", eventType, "trip_id", tripID)
}

func (p *Publisher) publish(evt Event) error {
	js, cleanup, err := p.newJS(p.url)
	if err != nil {
		return fmt.Errorf("connecting to NATS: %w", err)
	}
	defer cleanup()

	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	if _, err := js.Publish(evt.Type, data); err != nil {
		return fmt.Errorf("publishing %s: %w", evt.Type, err)
	}
	return nil
}

// Probe verifies NATS connectivity. A missing stream is not a failure — NATS
// being reachable is what matters here.
func (p *Publisher) Probe(ctx context.Context) setup.ProbeResult {
	start := time.Now()

	err := func() error {
		js, cleanup, err := p.newJS(p.url)
		if err != nil {
			return fmt.Errorf("connecting to NATS: %w", err)
		}
		defer cleanup()

		_, infoErr := js.StreamInfo(streamName)
		if infoErr != nil && !errors.Is(infoErr, nats.ErrStreamNotFound) {
			return fmt.Errorf("stream info: %w", infoErr)
		}
		return nil
	}()

	latency := time.Since(start).Milliseconds()

	if err != nil {
		return setup.ProbeResult{Name: probeName, OK: false, LatencyMs: latency, Error: err.Error()}
	}
	return setup.ProbeResult{Name: probeName, OK: true, LatencyMs: latency}
}

// realNewJS opens a real NATS connection and returns a JetStreamContext plus
// a cleanup function that closes the connection.
func realNewJS(url string) (jsContext, func(), error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, func() {}, fmt.Errorf("nats connect %s: %w", url, err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, func() {}, fmt.Errorf("nats jetstream context: %w", err)
	}

	return js, func() { nc.Close() }, nil
}
