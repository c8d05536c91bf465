package events

import "context"

// Publisher broadcasts a state-push message to every listening UI.
type Publisher interface {
	Broadcast(ctx context.Context, command string, payload interface{}) error
}

// NoOpPublisher is a Publisher that does nothing (for in-process usage
// without a channel).
type NoOpPublisher struct{}

// Broadcast is a no-op.
func (p *NoOpPublisher) Broadcast(_ context.Context, _ string, _ interface{}) error {
	return nil
}

// CallbackPublisher is a Publisher that calls a callback function (for testing).
type CallbackPublisher struct {
	callback func(ctx context.Context, command string, payload interface{}) error
}

// NewCallbackPublisher creates a new CallbackPublisher.
func NewCallbackPublisher(cb func(ctx context.Context, command string, payload interface{}) error) *CallbackPublisher {
	return &CallbackPublisher{callback: cb}
}

// Broadcast calls the callback.
func (p *CallbackPublisher) Broadcast(ctx context.Context, command string, payload interface{}) error {
	return p.callback(ctx, command, payload)
}
