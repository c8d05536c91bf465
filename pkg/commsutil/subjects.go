package commsutil

import (
	"fmt"
	"strings"
)

// Subject layout for the host↔UI panel channel. Requests and responses for
// one session live on distinct subjects; broadcasts fan out to every UI.
const (
	subjectPrefix   = "panel"
	broadcastPrefix = "panel.broadcast"
)

// BroadcastWildcard is the subscription pattern covering every broadcast topic.
const BroadcastWildcard = broadcastPrefix + ".>"

// SubjectControl is the request/reply subject for opening and closing panel
// sessions. UIs ask here first to learn their session subjects.
const SubjectControl = "panel.control"

// BuildRequestSubject builds the UI → host request subject for a session.
func BuildRequestSubject(sessionID string) string {
	return fmt.Sprintf("%s.%s.req", subjectPrefix, safeToken(sessionID))
}

// BuildResponseSubject builds the host → UI response subject for a session.
func BuildResponseSubject(sessionID string) string {
	return fmt.Sprintf("%s.%s.resp", subjectPrefix, safeToken(sessionID))
}

// BuildBroadcastSubject builds a host → all-UIs state-push subject.
func BuildBroadcastSubject(topic string) string {
	return fmt.Sprintf("%s.%s", broadcastPrefix, safeToken(topic))
}

// safeToken strips characters that have structural meaning in subjects.
func safeToken(s string) string {
	replacer := strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_")
	return replacer.Replace(s)
}
