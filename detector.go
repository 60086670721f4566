package darkhold

import (
	json "github.com/goccy/go-json"
)

// frameProbe mirrors the few fields classification needs.
type frameProbe struct {
	Id     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	Result json.RawMessage `json:"result"`
	Error  *Error          `json:"error"`
}

// threadProbe extracts params.threadId.
type threadProbe struct {
	ThreadId string `json:"threadId"`
}

// ParseFrame decodes one line of child output into a Frame. A non-numeric id
// is treated as absent. The error is non-nil only when data is not a JSON
// object; callers drop such lines.
func ParseFrame(data []byte) (*Frame, error) {
	probe := &frameProbe{}
	if err := json.Unmarshal(data, probe); err != nil {
		return nil, err
	}
	frame := &Frame{
		Method: probe.Method,
		Params: []byte(probe.Params),
		Result: []byte(probe.Result),
		Error:  probe.Error,
		Raw:    append([]byte(nil), data...),
	}
	if len(probe.Id) > 0 {
		var id int64
		if err := json.Unmarshal(probe.Id, &id); err == nil {
			frame.Id = &id
		}
	}
	return frame, nil
}

// ThreadId returns params.threadId when present.
func (f *Frame) ThreadId() string {
	if len(f.Params) == 0 {
		return ""
	}
	probe := &threadProbe{}
	_ = json.Unmarshal(f.Params, probe)
	return probe.ThreadId
}
