// Package bootstrap loads channel definitions from a channels.yml file.
package bootstrap

import (
	"github.com/morezero/channel-gateway/pkg/registry"
	"github.com/morezero/channel-gateway/pkg/types"
)

// OperationEntry is one getterConfig or setterConfig block.
type OperationEntry struct {
	Type      types.DataType       `yaml:"type" json:"type"`
	Fields    []registry.FieldSpec `yaml:"fields,omitempty" json:"fields,omitempty"`
	Arguments []string             `yaml:"arguments,omitempty" json:"arguments,omitempty"`
}

// ChannelEntry is one channel (or wildcard pattern) in the file.
type ChannelEntry struct {
	Channel      string          `yaml:"channel" json:"channel"`
	GetterConfig *OperationEntry `yaml:"getterConfig,omitempty" json:"getterConfig,omitempty"`
	SetterConfig *OperationEntry `yaml:"setterConfig,omitempty" json:"setterConfig,omitempty"`
}

// ProviderDefaults holds configs inherited by every channel.
type ProviderDefaults struct {
	GetterConfig *OperationEntry `yaml:"getterConfig,omitempty" json:"getterConfig,omitempty"`
	SetterConfig *OperationEntry `yaml:"setterConfig,omitempty" json:"setterConfig,omitempty"`
}

// ChannelFile is the root of channels.yml.
type ChannelFile struct {
	SchemaVersion string           `yaml:"schemaVersion" json:"schemaVersion"`
	Name          string           `yaml:"name" json:"name"`
	Description   string           `yaml:"description,omitempty" json:"description,omitempty"`
	Provider      ProviderDefaults `yaml:"channelProvider,omitempty" json:"channelProvider,omitempty"`
	Channels      []ChannelEntry   `yaml:"channels" json:"channels"`
}
