package events

import (
	"context"
	"testing"

	"github.com/morezero/channel-gateway/pkg/types"
)

func TestNoOpPublisher(t *testing.T) {
	pub := &NoOpPublisher{}
	err := pub.PublishChannelSet(context.Background(), &ChannelSetEvent{Channel: "DEV:ATTR", Type: types.Void})
	if err != nil {
		t.Errorf("events:publisher_test - expected no error, got %v", err)
	}
}

func TestCallbackPublisher(t *testing.T) {
	var captured *ChannelSetEvent

	pub := NewCallbackPublisher(func(_ context.Context, event *ChannelSetEvent) error {
		captured = event
		return nil
	})

	event := &ChannelSetEvent{
		Channel:   "XCOR:LI31:41:BDES",
		Type:      types.Table,
		Arguments: map[string]string{"VALUE": "0.5"},
		RequestID: "r-1",
	}
	if err := pub.PublishChannelSet(context.Background(), event); err != nil {
		t.Errorf("events:publisher_test - expected no error, got %v", err)
	}

	if captured == nil {
		t.Fatal("events:publisher_test - expected callback to be called")
	}
	if captured.Channel != "XCOR:LI31:41:BDES" || captured.Arguments["VALUE"] != "0.5" {
		t.Errorf("events:publisher_test - captured %+v", captured)
	}
}
