package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// relayEnvelope is the NATS payload carrying one event for one user
type relayEnvelope struct {
	Origin    string    `json:"origin"`
	Recipient string    `json:"recipient"`
	Message   WSMessage `json:"message"`
}

// NATSRelay forwards events between server instances over core NATS.
// Each instance subscribes to <prefix>.* and delivers to its own connections only.
type NATSRelay struct {
	nc         *nats.Conn
	hub        *WSHub
	prefix     string
	instanceID string
	sub        *nats.Subscription
}

// NewNATSRelay creates a relay bound to hub
func NewNATSRelay(nc *nats.Conn, hub *WSHub, prefix string) *NATSRelay {
	return &NATSRelay{
		nc:         nc,
		hub:        hub,
		prefix:     prefix,
		instanceID: uuid.New().String(),
	}
}

// Start subscribes to relayed events
func (r *NATSRelay) Start() error {
	sub, err := r.nc.Subscribe(r.prefix+".*", r.handle)
	if err != nil {
		return fmt.Errorf("failed to subscribe to relay subject: %w", err)
	}
	if err := r.nc.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return fmt.Errorf("failed to flush relay subscription: %w", err)
	}
	r.sub = sub

	log.Info().Str("subject", r.prefix+".*").Str("instance_id", r.instanceID).Msg("NATS relay started")
	return nil
}

// Publish sends message for recipientID to the other instances
func (r *NATSRelay) Publish(ctx context.Context, recipientID string, message WSMessage) error {
	if !validSubjectToken(recipientID) {
		return fmt.Errorf("recipient %q is not a valid subject token", recipientID)
	}

	data, err := json.Marshal(relayEnvelope{
		Origin:    r.instanceID,
		Recipient: recipientID,
		Message:   message,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal relay envelope: %w", err)
	}

	if err := r.nc.Publish(r.prefix+"."+recipientID, data); err != nil {
		return fmt.Errorf("failed to publish relay event: %w", err)
	}
	return nil
}

// Close unsubscribes from relayed events
func (r *NATSRelay) Close() error {
	if r.sub == nil {
		return nil
	}
	return r.sub.Unsubscribe()
}

func (r *NATSRelay) handle(msg *nats.Msg) {
	var envelope relayEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		log.Error().Err(err).Str("subject", msg.Subject).Msg("Failed to decode relay event")
		return
	}

	// Our own publications were already attempted locally.
	if envelope.Origin == r.instanceID {
		return
	}

	if err := r.hub.SendToUser(envelope.Recipient, envelope.Message); err != nil && !errors.Is(err, ErrUserOffline) {
		log.Debug().
			Err(err).
			Str("user_id", envelope.Recipient).
			Str("event", envelope.Message.Type).
			Msg("Relayed event dropped")
	}
}

func validSubjectToken(s string) bool {
	return s != "" && !strings.ContainsAny(s, ".*> \t\r\n")
}
