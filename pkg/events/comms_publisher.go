package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/console-bridge/pkg/commsutil"
	"github.com/morezero/console-bridge/pkg/envelope"
)

const commsPublisherLogPrefix = "events:comms_publisher"

// CommsPublisher broadcasts state-push envelopes on the panel broadcast
// subjects. Broadcasts carry no requestId and are delivered to every
// listening UI rather than resolved against a pending request.
type CommsPublisher struct {
	nc *comms.Conn
}

// NewCommsPublisher creates a new CommsPublisher.
func NewCommsPublisher(nc *comms.Conn) *CommsPublisher {
	return &CommsPublisher{nc: nc}
}

// Broadcast publishes the payload under the command's broadcast subject.
func (p *CommsPublisher) Broadcast(_ context.Context, command string, payload interface{}) error {
	resp, err := envelope.Broadcast(command, payload)
	if err != nil {
		return fmt.Errorf("%s - failed to encode %s: %w", commsPublisherLogPrefix, command, err)
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("%s - failed to encode envelope for %s: %w", commsPublisherLogPrefix, command, err)
	}

	subject := commsutil.BuildBroadcastSubject(command)
	if err := p.nc.Publish(subject, data); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to publish to %s: %v", commsPublisherLogPrefix, subject, err))
		return err
	}

	slog.Debug(fmt.Sprintf("%s - Broadcast %s", commsPublisherLogPrefix, command))
	return nil
}
