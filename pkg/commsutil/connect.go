// Package commsutil provides message channel connection helpers and the
// subject layout for the host↔UI panel bridge.
package commsutil

import (
	"fmt"
	"log/slog"
	"time"

	comms "github.com/nats-io/nats.go"
)

const logPrefix = "commsutil:connect"

// Connection tuning for a desktop companion process. The broker is normally
// embedded in the same process or on localhost, so connects are fast and a
// dropped connection should be retried for as long as the app is open rather
// than giving up after a fixed budget.
const (
	connectTimeout = 3 * time.Second
	reconnectWait  = 500 * time.Millisecond
	maxReconnects  = -1
)

// Connect creates a channel connection to the given broker URL.
func Connect(url, name string) (*comms.Conn, error) {
	slog.Info(fmt.Sprintf("%s - Connecting to broker at %s as %s", logPrefix, url, name))

	nc, err := comms.Connect(url,
		comms.Name(name),
		comms.Timeout(connectTimeout),
		comms.ReconnectWait(reconnectWait),
		comms.MaxReconnects(maxReconnects),
		comms.DisconnectErrHandler(func(_ *comms.Conn, err error) {
			slog.Warn(fmt.Sprintf("%s - broker disconnected: %v", logPrefix, err))
		}),
		comms.ReconnectHandler(func(nc *comms.Conn) {
			slog.Info(fmt.Sprintf("%s - broker reconnected to %s", logPrefix, nc.ConnectedUrl()))
		}),
		comms.ClosedHandler(func(nc *comms.Conn) {
			slog.Info(fmt.Sprintf("%s - broker connection closed", logPrefix))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to connect to broker: %w", logPrefix, err)
	}

	slog.Info(fmt.Sprintf("%s - Connected to broker at %s", logPrefix, nc.ConnectedUrl()))
	return nc, nil
}
