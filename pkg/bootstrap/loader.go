package bootstrap

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"github.com/morezero/channel-gateway/pkg/registry"
	"github.com/morezero/channel-gateway/pkg/types"
)

const logPrefix = "bootstrap:loader"

// EnvChannelsFile names the environment variable holding the channel file path.
const EnvChannelsFile = "GATEWAY_CHANNELS_FILE"

// SupportedSchema is the range of schemaVersion values this loader reads.
const SupportedSchema = ">= 1.0.0, < 2.0.0"

const defaultSchemaVersion = "1.0.0"

// ErrNoChannelFile is returned when none of the candidate paths exist.
var ErrNoChannelFile = errors.New("no channel configuration file found")

// LoadChannelFile loads channel definitions from the first existing path.
// It tries paths in order: first any paths passed in, then GATEWAY_CHANNELS_FILE,
// then config/channels.yml and channels.yml. It returns the path it read.
func LoadChannelFile(paths ...string) (*ChannelFile, string, error) {
	all := make([]string, 0, len(paths)+3)
	for _, p := range paths {
		if p != "" {
			all = append(all, p)
		}
	}
	if envPath := os.Getenv(EnvChannelsFile); envPath != "" {
		all = append(all, envPath)
	}
	all = append(all, "config/channels.yml", "channels.yml")

	for _, p := range all {
		data, err := os.ReadFile(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, p, fmt.Errorf("%s - failed to read %s: %w", logPrefix, p, err)
		}

		file, err := ParseChannelFile(data)
		if err != nil {
			return nil, p, fmt.Errorf("%s - %s: %w", logPrefix, p, err)
		}
		slog.Info(fmt.Sprintf("%s - Loaded channel configuration from %s", logPrefix, p))
		return file, p, nil
	}

	return nil, "", fmt.Errorf("%s - %w (tried %v)", logPrefix, ErrNoChannelFile, all)
}

// ParseChannelFile decodes YAML (JSON is accepted as a YAML subset) and
// checks the schema version.
func ParseChannelFile(data []byte) (*ChannelFile, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var file ChannelFile
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("channel file is empty")
		}
		return nil, fmt.Errorf("invalid channel file: %w", err)
	}
	if err := checkSchemaVersion(file.SchemaVersion); err != nil {
		return nil, err
	}
	return &file, nil
}

func checkSchemaVersion(v string) error {
	if v == "" {
		v = defaultSchemaVersion
	}
	version, err := semver.NewVersion(v)
	if err != nil {
		return fmt.Errorf("invalid schemaVersion %q: %w", v, err)
	}
	constraint, err := semver.NewConstraint(SupportedSchema)
	if err != nil {
		return err
	}
	if !constraint.Check(version) {
		return fmt.Errorf("unsupported schemaVersion %s: want %s", version, SupportedSchema)
	}
	return nil
}

// RegistryChannels expands the file into registry channels, applying provider
// defaults to any direction a channel leaves unset or partially set.
func (f *ChannelFile) RegistryChannels() []registry.Channel {
	out := make([]registry.Channel, 0, len(f.Channels))
	for _, e := range f.Channels {
		out = append(out, registry.Channel{
			Name:   e.Channel,
			Getter: merge(e.GetterConfig, f.Provider.GetterConfig),
			Setter: merge(e.SetterConfig, f.Provider.SetterConfig),
		})
	}
	return out
}

func merge(entry, def *OperationEntry) *registry.OperationConfig {
	if entry == nil && def == nil {
		return nil
	}
	if entry == nil {
		entry = &OperationEntry{}
	}
	if def == nil {
		def = &OperationEntry{}
	}

	t := entry.Type
	if t == types.None {
		t = def.Type
	}
	if t == types.None {
		return nil
	}
	fields := entry.Fields
	if fields == nil {
		fields = def.Fields
	}
	arguments := entry.Arguments
	if arguments == nil {
		arguments = def.Arguments
	}
	return registry.NewOperationConfig(t, fields, arguments)
}

// BuildRegistry creates a registry snapshot from the file.
func BuildRegistry(f *ChannelFile) (*registry.Registry, error) {
	return registry.NewRegistry(registry.NewRegistryParams{
		Name:        f.Name,
		Description: f.Description,
		Channels:    f.RegistryChannels(),
	})
}

// LoadRegistry loads the channel file and builds a registry from it.
func LoadRegistry(paths ...string) (*registry.Registry, error) {
	file, _, err := LoadChannelFile(paths...)
	if err != nil {
		return nil, err
	}
	return BuildRegistry(file)
}
