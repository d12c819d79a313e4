package alert

import (
	"context"
	"time"

	"price-notifications/internal/types"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Transport delivers a text message to a contact and returns the provider's message id.
type Transport interface {
	Send(ctx context.Context, contact types.Contact, text string) (string, error)
	Name() string
}

// Dispatcher sends every alert event as one message.
type Dispatcher struct {
	transport Transport
	timeout   time.Duration
}

// NewDispatcher returns a dispatcher; a non-positive timeout leaves sends unbounded.
func NewDispatcher(transport Transport, timeout time.Duration) *Dispatcher {
	return &Dispatcher{transport: transport, timeout: timeout}
}

// Dispatch sends events in order. A failed send is logged and recorded in its
// outcome; it never stops the remaining sends and is not retried.
func (d *Dispatcher) Dispatch(ctx context.Context, events []types.AlertEvent, contact types.Contact) []types.Outcome {
	outcomes := make([]types.Outcome, 0, len(events))
	for _, event := range events {
		outcome := types.Outcome{Event: event, Text: FormatMessage(event)}
		outcome.MessageID, outcome.Err = d.send(ctx, contact, outcome.Text)

		if outcome.Err != nil {
			log.WithFields(log.Fields{
				"asset":     event.AssetID,
				"direction": event.Direction,
				"transport": d.transport.Name(),
			}).Errorf("❌ Failed to send alert: %v", outcome.Err)
		} else {
			log.WithFields(log.Fields{
				"asset":      event.AssetID,
				"direction":  event.Direction,
				"message_id": outcome.MessageID,
			}).Info("✅ Alert sent")
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

func (d *Dispatcher) send(ctx context.Context, contact types.Contact, text string) (string, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	id, err := d.transport.Send(ctx, contact, text)
	if err != nil {
		return "", errors.Wrapf(types.ErrTransportSendFailure, "%s: %v", d.transport.Name(), err)
	}
	return id, nil
}

// Failed counts outcomes that carry an error.
func Failed(outcomes []types.Outcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}
