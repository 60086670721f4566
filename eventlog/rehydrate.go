package eventlog

import (
	"github.com/viant/darkhold"
)

// deriveEvents rebuilds a thread's event lines from a thread/read result:
// one thread-event per history item, a turn.error event for a failed turn,
// and a turn/completed envelope closing each turn. ok is false when the
// result carries no thread object.
func deriveEvents(threadId string, result []byte) ([]string, bool, error) {
	parsed := darkhold.ParseThreadResult(result)
	if parsed == nil {
		return nil, false, nil
	}
	var lines []string
	for index, turn := range parsed.Thread.Turns {
		for _, item := range turn.Items {
			eventType, message := darkhold.Summarize(item)
			line, err := darkhold.NewThreadEvent(threadId, eventType, message)
			if err != nil {
				return nil, false, err
			}
			lines = append(lines, string(line))
		}
		if turn.Failed() {
			line, err := darkhold.NewThreadEvent(threadId, darkhold.EventTypeTurnError, turn.Error.Message)
			if err != nil {
				return nil, false, err
			}
			lines = append(lines, string(line))
		}
		line, err := darkhold.NewTurnCompletedEvent(threadId, index+1)
		if err != nil {
			return nil, false, err
		}
		lines = append(lines, string(line))
	}
	return lines, true, nil
}
