package registry

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const describeLogPrefix = "registry:describe"

// Describe returns the getter and setter configuration that would govern a
// request to the named channel, and which entry matched it.
func (r *Registry) Describe(name string) (*DescribeOutput, error) {
	slog.Debug(fmt.Sprintf("%s - channel=%s", describeLogPrefix, name))

	if strings.TrimSpace(name) == "" {
		return nil, &RegistryError{Code: "INVALID_ARGUMENT", Message: "channel name is required"}
	}
	c, ok := r.Lookup(name)
	if !ok {
		return nil, &RegistryError{Code: "NOT_FOUND", Message: fmt.Sprintf("Channel not found: %s", name)}
	}
	return &DescribeOutput{
		Channel:   name,
		MatchedBy: c.Name,
		Getter:    c.Getter,
		Setter:    c.Setter,
	}, nil
}

// Health reports whether any channels are loaded.
func (r *Registry) Health() *HealthOutput {
	ok := len(r.ordered) > 0
	status := "healthy"
	if !ok {
		status = "unhealthy"
	}
	return &HealthOutput{
		Status:    status,
		Checks:    HealthChecks{Channels: ok},
		Channels:  len(r.ordered),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
