package events

import (
	"context"
	"fmt"
	"log/slog"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/channel-gateway/pkg/commsutil"
)

const commsPublisherLogPrefix = "events:comms_publisher"

// CommsPublisherOpts configures CommsPublisher. Nil or zero values use defaults.
type CommsPublisherOpts struct {
	// GlobalSetSubject overrides the global set event subject (e.g. from GATEWAY_SET_EVENT_SUBJECT).
	GlobalSetSubject string
}

// CommsPublisher publishes set events to COMMS subjects.
type CommsPublisher struct {
	nc               *comms.Conn
	globalSetSubject string
}

// NewCommsPublisher creates a new CommsPublisher. Pass nil for opts to use defaults.
func NewCommsPublisher(nc *comms.Conn, opts *CommsPublisherOpts) *CommsPublisher {
	globalSubject := commsutil.SubjectSetEvent
	if opts != nil && opts.GlobalSetSubject != "" {
		globalSubject = opts.GlobalSetSubject
	}
	return &CommsPublisher{nc: nc, globalSetSubject: globalSubject}
}

// PublishChannelSet publishes the event to the per-channel subject and to
// the global subject.
func (p *CommsPublisher) PublishChannelSet(_ context.Context, event *ChannelSetEvent) error {
	data, err := commsutil.EncodePayload(event)
	if err != nil {
		return fmt.Errorf("%s - failed to encode event: %w", commsPublisherLogPrefix, err)
	}

	channelSubject := commsutil.BuildSetSubject(p.globalSetSubject, event.Channel)
	if err := p.nc.Publish(channelSubject, data); err != nil {
		return fmt.Errorf("%s - failed to publish to %s: %w", commsPublisherLogPrefix, channelSubject, err)
	}

	if err := p.nc.Publish(p.globalSetSubject, data); err != nil {
		return fmt.Errorf("%s - failed to publish to %s: %w", commsPublisherLogPrefix, p.globalSetSubject, err)
	}

	slog.Debug(fmt.Sprintf("%s - Published set event for %s", commsPublisherLogPrefix, event.Channel))
	return nil
}
