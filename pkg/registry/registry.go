package registry

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

const logPrefix = "registry:registry"

// Registry is a read-only snapshot of channel configuration. It is built
// once at startup and needs no locking.
type Registry struct {
	name        string
	description string
	exact       map[string]*Channel
	patterns    []pattern
	ordered     []*Channel
}

type pattern struct {
	re      *regexp.Regexp
	channel *Channel
}

// NewRegistryParams holds parameters for NewRegistry.
type NewRegistryParams struct {
	Name        string
	Description string
	Channels    []Channel
}

// NewRegistry builds a Registry. Channel names containing '*' or '?' are
// treated as wildcard patterns, tried in declaration order after exact names.
func NewRegistry(params NewRegistryParams) (*Registry, error) {
	r := &Registry{
		name:        params.Name,
		description: params.Description,
		exact:       make(map[string]*Channel, len(params.Channels)),
	}

	seen := make(map[string]bool, len(params.Channels))
	for i := range params.Channels {
		ch := params.Channels[i]
		if strings.TrimSpace(ch.Name) == "" {
			return nil, fmt.Errorf("%s - channel %d has no name", logPrefix, i)
		}
		if seen[ch.Name] {
			return nil, fmt.Errorf("%s - duplicate channel %q", logPrefix, ch.Name)
		}
		seen[ch.Name] = true

		c := &ch
		r.ordered = append(r.ordered, c)
		if !IsWildcard(ch.Name) {
			r.exact[ch.Name] = c
			continue
		}
		re, err := compileWildcard(ch.Name)
		if err != nil {
			return nil, fmt.Errorf("%s - channel %q: %w", logPrefix, ch.Name, err)
		}
		r.patterns = append(r.patterns, pattern{re: re, channel: c})
	}

	slog.Debug(fmt.Sprintf("%s - loaded %d channels (%d patterns)", logPrefix, len(r.ordered), len(r.patterns)))
	return r, nil
}

// Name returns the service name the channels were loaded under.
func (r *Registry) Name() string { return r.name }

// Description returns the service description.
func (r *Registry) Description() string { return r.description }

// Len returns the number of configured channel entries.
func (r *Registry) Len() int { return len(r.ordered) }

// Names returns every configured channel name or pattern in declaration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.ordered))
	for i, c := range r.ordered {
		out[i] = c.Name
	}
	return out
}

// Lookup returns the channel entry governing name: an exact entry if one
// exists, otherwise the first matching pattern.
func (r *Registry) Lookup(name string) (*Channel, bool) {
	if c, ok := r.exact[name]; ok {
		return c, true
	}
	for _, p := range r.patterns {
		if p.re.MatchString(name) {
			return p.channel, true
		}
	}
	return nil, false
}

// Resolve returns the getter and setter configs for a channel name. An
// unknown channel yields two nil configs; that is not an error here.
func (r *Registry) Resolve(name string) (getter, setter *OperationConfig) {
	c, ok := r.Lookup(name)
	if !ok {
		return nil, nil
	}
	return c.Getter, c.Setter
}

// IsWildcard reports whether a channel name is a pattern.
func IsWildcard(name string) bool {
	return strings.ContainsAny(name, "*?")
}

func compileWildcard(name string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range name {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

// SummarizeNames joins names for logging, keeping at most limit entries and
// marking the rest with "...".
func SummarizeNames(names []string, limit int) string {
	if limit > 0 && len(names) > limit {
		return strings.Join(names[:limit], ", ") + ", ..."
	}
	return strings.Join(names, ", ")
}
