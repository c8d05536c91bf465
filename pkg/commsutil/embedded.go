package commsutil

import (
	"fmt"
	"log/slog"
	"time"

	commsserver "github.com/nats-io/nats-server/v2/server"
)

const embeddedLogPrefix = "commsutil:embedded"

// StartEmbeddedBroker runs an in-process broker for desktop operation, so a
// standalone installation needs no external messaging infrastructure.
// Port 0 picks a free port; use ClientURL on the returned server to connect.
func StartEmbeddedBroker(host string, port int) (*commsserver.Server, error) {
	if host == "" {
		host = "127.0.0.1"
	}

	opts := &commsserver.Options{
		Host:   host,
		Port:   port,
		NoLog:  true,
		NoSigs: true,
	}

	ns, err := commsserver.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to create embedded broker: %w", embeddedLogPrefix, err)
	}

	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("%s - embedded broker failed to start", embeddedLogPrefix)
	}

	slog.Info(fmt.Sprintf("%s - Embedded broker listening at %s", embeddedLogPrefix, ns.ClientURL()))
	return ns, nil
}

// StopEmbeddedBroker shuts the broker down and waits for it to exit.
func StopEmbeddedBroker(ns *commsserver.Server) {
	if ns == nil {
		return
	}
	ns.Shutdown()
	ns.WaitForShutdown()
	slog.Info(fmt.Sprintf("%s - Embedded broker stopped", embeddedLogPrefix))
}
