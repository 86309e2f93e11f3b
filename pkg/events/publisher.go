package events

import "context"

// EventPublisher is the interface for publishing set notifications.
type EventPublisher interface {
	PublishChannelSet(ctx context.Context, event *ChannelSetEvent) error
}

// NoOpPublisher is an EventPublisher that does nothing (for in-process usage without events).
type NoOpPublisher struct{}

// PublishChannelSet is a no-op.
func (p *NoOpPublisher) PublishChannelSet(_ context.Context, _ *ChannelSetEvent) error {
	return nil
}

// CallbackPublisher is an EventPublisher that calls a callback function (for testing).
type CallbackPublisher struct {
	callback func(ctx context.Context, event *ChannelSetEvent) error
}

// NewCallbackPublisher creates a new CallbackPublisher.
func NewCallbackPublisher(cb func(ctx context.Context, event *ChannelSetEvent) error) *CallbackPublisher {
	return &CallbackPublisher{callback: cb}
}

// PublishChannelSet calls the callback.
func (p *CallbackPublisher) PublishChannelSet(ctx context.Context, event *ChannelSetEvent) error {
	return p.callback(ctx, event)
}
