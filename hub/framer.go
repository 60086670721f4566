package hub

import (
	"fmt"
	"strings"
)

// KeepaliveFrame is the comment frame sent on idle streams so intermediaries
// do not close the connection.
const KeepaliveFrame = ": keepalive\n\n"

// FrameEvent renders one SSE frame: the event id, the payload split into one
// data: line per payload line, and a blank terminator.
func FrameEvent(id int, payload string) string {
	var builder strings.Builder
	_, _ = fmt.Fprintf(&builder, "id: %d\n", id)
	for _, part := range strings.Split(payload, "\n") {
		builder.WriteString("data: ")
		builder.WriteString(part)
		builder.WriteString("\n")
	}
	builder.WriteString("\n")
	return builder.String()
}
