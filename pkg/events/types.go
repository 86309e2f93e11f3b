// Package events defines set notifications and their publishers.
package events

import "github.com/morezero/channel-gateway/pkg/types"

// ChannelSetEvent is emitted after a set request completes successfully.
type ChannelSetEvent struct {
	Channel   string            `json:"channel"`
	Type      types.DataType    `json:"type"`
	Arguments map[string]string `json:"arguments"`
	RequestID string            `json:"requestId,omitempty"`
	Timestamp string            `json:"timestamp"`
}
