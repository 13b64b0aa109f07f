// Package notify publishes terminal signal transitions to RabbitMQ for
// dashboard and alerting consumers. Coordination between pipeline stages
// never flows through here; the durable store remains the only bus.
package notify

import (
	"time"

	"quantcontrol/internal/models"

	logger "github.com/sirupsen/logrus"
)

const QueueSignalEvents = "signal_events"

// Publisher is satisfied by config.Publisher.
type Publisher interface {
	Publish(queueName string, message interface{}) error
}

// SignalEvent is the published payload.
type SignalEvent struct {
	SignalID  uint      `json:"signal_id"`
	Symbol    string    `json:"symbol"`
	Side      string    `json:"side"`
	Strategy  string    `json:"strategy"`
	Status    string    `json:"status"`
	LastError string    `json:"last_error,omitempty"`
	At        time.Time `json:"at"`
}

// Notifier publishes signal transitions. Best effort: a broken queue must
// never fail a pipeline commit.
type Notifier struct {
	pub Publisher
}

func New(pub Publisher) *Notifier {
	return &Notifier{pub: pub}
}

// SignalTransition publishes a terminal transition event.
func (n *Notifier) SignalTransition(sig *models.Signal, status string) {
	event := SignalEvent{
		SignalID: sig.ID,
		Symbol:   sig.Symbol,
		Side:     sig.Side,
		Strategy: sig.Strategy,
		Status:   status,
		At:       time.Now().UTC(),
	}
	if err := n.pub.Publish(QueueSignalEvents, event); err != nil {
		logger.Warnf("Failed to publish signal event for %d: %v", sig.ID, err)
	}
}
