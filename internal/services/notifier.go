package services

import (
	"context"
	"errors"

	"chat-backend/internal/metrics"

	"github.com/rs/zerolog/log"
)

// Relay forwards an event to other server instances when the recipient is not connected locally
type Relay interface {
	Publish(ctx context.Context, recipientID string, message WSMessage) error
}

// Notifier delivers real-time events to connected users on a best-effort basis
type Notifier struct {
	hub   *WSHub
	relay Relay
}

// NewNotifier creates a notifier over hub. relay may be nil for single-instance deployments.
func NewNotifier(hub *WSHub, relay Relay) *Notifier {
	return &Notifier{hub: hub, relay: relay}
}

// Emit delivers event to recipientID if connected; otherwise the event is relayed or dropped.
// Delivery problems are never reported to the caller.
func (n *Notifier) Emit(ctx context.Context, event, recipientID string, payload interface{}) {
	message := WSMessage{Type: event, Data: payload}

	err := n.hub.SendToUser(recipientID, message)
	if err == nil {
		metrics.EventsEmitted.WithLabelValues(event, metrics.OutcomeDelivered).Inc()
		return
	}

	if errors.Is(err, ErrUserOffline) && n.relay != nil {
		relayErr := n.relay.Publish(ctx, recipientID, message)
		if relayErr == nil {
			metrics.EventsEmitted.WithLabelValues(event, metrics.OutcomeRelayed).Inc()
			return
		}
		err = relayErr
	}

	metrics.EventsEmitted.WithLabelValues(event, metrics.OutcomeDropped).Inc()
	log.Debug().
		Err(err).
		Str("event", event).
		Str("user_id", recipientID).
		Msg("Real-time event dropped")
}
