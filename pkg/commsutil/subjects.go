package commsutil

import (
	"strings"
)

// Default COMMS subjects.
const (
	SubjectRequest  = "aida.request"
	SubjectSetEvent = "channel.set"
)

var subjectReplacer = strings.NewReplacer(".", "_", " ", "_", "\t", "_", "*", "_", ">", "_")

// SanitizeToken makes a channel name safe to use as a single subject token.
func SanitizeToken(name string) string {
	if name == "" {
		return "_"
	}
	return subjectReplacer.Replace(name)
}

// BuildSetSubject builds the per-channel set notification subject.
func BuildSetSubject(prefix, channel string) string {
	if prefix == "" {
		prefix = SubjectSetEvent
	}
	return prefix + "." + SanitizeToken(channel)
}
