package darkhold

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ThreadResult is the partial schema of the results of thread/start,
// thread/read and thread/resume. Unfamiliar fields pass through untouched in
// the raw result; only the thread id and turn history are inspected.
type ThreadResult struct {
	Thread struct {
		Id    string `json:"id"`
		Turns []Turn `json:"turns"`
	} `json:"thread"`
}

// Turn is one request/response cycle of a thread history.
type Turn struct {
	Items  []json.RawMessage `json:"items"`
	Status string            `json:"status"`
	Error  *Error            `json:"error"`
}

// Failed reports whether the turn ended in error with a message to surface.
func (t *Turn) Failed() bool {
	return t.Status == "failed" && t.Error != nil && t.Error.Message != ""
}

// ParseThreadResult probes a result payload for the thread shape. A nil
// return means the result carries no thread object.
func ParseThreadResult(result json.RawMessage) *ThreadResult {
	if len(result) == 0 {
		return nil
	}
	parsed := &ThreadResult{}
	if err := json.Unmarshal(result, parsed); err != nil {
		return nil
	}
	if parsed.Thread.Id == "" {
		return nil
	}
	return parsed
}

// ThreadItem is the partial schema of a thread history item.
type ThreadItem struct {
	Type    string            `json:"type"`
	Text    string            `json:"text,omitempty"`
	Command string            `json:"command,omitempty"`
	Status  string            `json:"status,omitempty"`
	Tool    string            `json:"tool,omitempty"`
	Server  string            `json:"server,omitempty"`
	Changes []json.RawMessage `json:"changes,omitempty"`
	Content []ContentSegment  `json:"content,omitempty"`
}

// ContentSegment is one element of a userMessage content array.
type ContentSegment struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Summarize maps a thread history item to the event type and display message
// used for rehydrated envelopes. Items the mapping does not recognize come
// back as item.<type> with the full JSON as message.
func Summarize(item json.RawMessage) (string, string) {
	parsed := &ThreadItem{}
	if err := json.Unmarshal(item, parsed); err != nil {
		return "item.unknown", string(item)
	}
	switch parsed.Type {
	case "userMessage":
		var segments []string
		for _, segment := range parsed.Content {
			if segment.Type == "text" && segment.Text != "" {
				segments = append(segments, segment.Text)
			}
		}
		if len(segments) == 0 {
			return "user.input", "[non-text input]"
		}
		return "user.input", strings.Join(segments, "")
	case "agentMessage":
		if parsed.Text != "" {
			return "assistant.output", parsed.Text
		}
	case "commandExecution":
		if parsed.Command != "" {
			status := parsed.Status
			if status == "" {
				status = "updated"
			}
			return "command." + status, parsed.Command
		}
	case "fileChange":
		if parsed.Changes != nil {
			return "file.change", fmt.Sprintf("%d file(s) changed", len(parsed.Changes))
		}
	case "mcpToolCall":
		if parsed.Tool != "" {
			server := parsed.Server
			if server == "" {
				server = "mcp"
			}
			return "mcp.tool", server + "." + parsed.Tool
		}
	}
	itemType := parsed.Type
	if itemType == "" {
		itemType = "unknown"
	}
	return "item." + itemType, string(item)
}
