package darkhold

import (
	"encoding/json"
	"strconv"
)

// FrameType is an enumeration of the kinds of frames the app-server dialect carries.
type FrameType string

const (
	FrameTypeRequest      FrameType = "request"
	FrameTypeNotification FrameType = "notification"
	FrameTypeResponse     FrameType = "response"
	FrameTypeUnknown      FrameType = "unknown"
)

// Frame is a single newline-delimited JSON message exchanged with the
// app-server child. The dialect omits the JSON-RPC version field and uses
// numeric ids. Only the fields the gateway inspects are modeled; everything
// else travels inside Params and Result verbatim.
type Frame struct {
	Id     *int64          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *Error          `json:"error,omitempty"`

	// Raw holds the original line the frame was parsed from, so notifications
	// can be republished without re-encoding.
	Raw json.RawMessage `json:"-"`
}

// Type classifies the frame shape. A numeric id with a result or error wins
// as a response; a numeric id with a method is a server-initiated request; a
// bare method is a notification. Anything else is unknown and dropped by
// callers.
func (f *Frame) Type() FrameType {
	if f.Id != nil && (len(f.Result) > 0 || f.Error != nil) {
		return FrameTypeResponse
	}
	if f.Id != nil && f.Method != "" {
		return FrameTypeRequest
	}
	if f.Method != "" {
		return FrameTypeNotification
	}
	return FrameTypeUnknown
}

// RequestId returns the decimal form of the frame id, used to key pending
// interactions. Empty when the frame has no id.
func (f *Frame) RequestId() string {
	if f.Id == nil {
		return ""
	}
	return strconv.FormatInt(*f.Id, 10)
}

// NewRequest renders a call frame addressed to the child. Params are omitted
// when absent or null.
func NewRequest(id int64, method string, params json.RawMessage) ([]byte, error) {
	request := struct {
		Id     int64           `json:"id"`
		Method string          `json:"method"`
		Params json.RawMessage `json:"params,omitempty"`
	}{Id: id, Method: method}
	if present(params) {
		request.Params = params
	}
	return json.Marshal(&request)
}

// NewReply renders a response frame addressed to the child. An error object
// wins over a result; with neither, a null result is sent, which the
// app-server accepts as a plain acknowledgement.
func NewReply(id int64, result, errObject json.RawMessage) ([]byte, error) {
	reply := struct {
		Id     int64           `json:"id"`
		Result json.RawMessage `json:"result,omitempty"`
		Error  json.RawMessage `json:"error,omitempty"`
	}{Id: id}
	switch {
	case present(errObject):
		reply.Error = errObject
	case present(result):
		reply.Result = result
	default:
		reply.Result = json.RawMessage("null")
	}
	return json.Marshal(&reply)
}

// present reports whether a raw JSON value carries content; an explicit null
// counts as absent.
func present(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}
