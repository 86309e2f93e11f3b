package dispatcher

import "strings"

const (
	serviceSeparator = "::"
	legacySeparator  = "//"
)

// CanonicalName strips a "service::" prefix and then rewrites the last
// legacy "//" separator to ":".
func CanonicalName(name string) string {
	if i := strings.Index(name, serviceSeparator); i >= 0 {
		name = name[i+len(serviceSeparator):]
	}
	if i := strings.LastIndex(name, legacySeparator); i >= 0 {
		name = name[:i] + ":" + name[i+len(legacySeparator):]
	}
	return name
}
