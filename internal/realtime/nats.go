package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/DanFullStackDev/AgrolinkHubAfricaProject/internal/metrics"
)

// envelope is the wire form of a relayed room event.
type envelope struct {
	Origin  string          `json:"origin"`
	Room    string          `json:"room"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// LocalDeliverer receives events relayed from other instances.
type LocalDeliverer interface {
	DeliverLocal(room, event string, payload any) int
}

// NATSRelay publishes room events on a single NATS subject and delivers
// events from other instances to the local hub. Delivery is at-most-once,
// matching the local broadcast.
type NATSRelay struct {
	nc       *nats.Conn
	sub      *nats.Subscription
	subject  string
	instance string
	logger   zerolog.Logger
}

// NewNATSRelay connects to NATS.
func NewNATSRelay(url, subject string, logger zerolog.Logger) (*NATSRelay, error) {
	nc, err := nats.Connect(url, nats.Name("agrolink-chat"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSRelay{
		nc:       nc,
		subject:  subject,
		instance: uuid.NewString(),
		logger:   logger.With().Str("component", "nats_relay").Logger(),
	}, nil
}

// Start subscribes to the relay subject and feeds remote events to dst.
func (r *NATSRelay) Start(dst LocalDeliverer) error {
	sub, err := r.nc.Subscribe(r.subject, func(msg *nats.Msg) {
		r.handle(msg.Data, dst)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %q: %w", r.subject, err)
	}
	r.sub = sub
	r.logger.Info().Str("subject", r.subject).Str("instance", r.instance).Msg("relay subscribed")
	return nil
}

func (r *NATSRelay) handle(data []byte, dst LocalDeliverer) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		r.logger.Warn().Err(err).Msg("bad relay envelope")
		return
	}
	if env.Origin == r.instance {
		return
	}
	metrics.RelayEvents.WithLabelValues("received").Inc()
	dst.DeliverLocal(env.Room, env.Event, env.Payload)
}

// Publish sends an event to the other instances.
func (r *NATSRelay) Publish(room, event string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	data, err := json.Marshal(envelope{
		Origin:  r.instance,
		Room:    room,
		Event:   event,
		Payload: raw,
	})
	if err != nil {
		return err
	}
	if err := r.nc.Publish(r.subject, data); err != nil {
		return fmt.Errorf("failed to publish to %q: %w", r.subject, err)
	}
	metrics.RelayEvents.WithLabelValues("published").Inc()
	return nil
}

// Ping reports whether the NATS connection is usable.
func (r *NATSRelay) Ping() error {
	if !r.nc.IsConnected() {
		return fmt.Errorf("nats status %s", r.nc.Status())
	}
	return nil
}

// Close unsubscribes and drains the connection.
func (r *NATSRelay) Close() {
	if r.sub != nil {
		_ = r.sub.Unsubscribe()
	}
	r.nc.Close()
}
