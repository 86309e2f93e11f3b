package db

import (
	"time"

	"github.com/morezero/channel-gateway/pkg/registry"
)

// ChannelSet is a row in the channel_sets table.
type ChannelSet struct {
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	SchemaVersion string    `json:"schemaVersion"`
	Created       time.Time `json:"created"`
	Modified      time.Time `json:"modified"`
}

// ChannelRow is a row in the channels table. Getter and Setter are nil when
// the direction is not configured.
type ChannelRow struct {
	ID       string                    `json:"id"`
	SetName  string                    `json:"setName"`
	Name     string                    `json:"name"`
	Position int                       `json:"position"`
	Getter   *registry.OperationConfig `json:"getter,omitempty"`
	Setter   *registry.OperationConfig `json:"setter,omitempty"`
	Revision int                       `json:"revision"`
	Created  time.Time                 `json:"created"`
	Modified time.Time                 `json:"modified"`
}

// Channel converts the row to the registry form.
func (r ChannelRow) Channel() registry.Channel {
	return registry.Channel{Name: r.Name, Getter: r.Getter, Setter: r.Setter}
}
