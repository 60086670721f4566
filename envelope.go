package darkhold

import (
	"encoding/json"
)

// Methods of the envelopes the gateway synthesizes next to verbatim child
// traffic on a thread's event stream.
const (
	MethodInteractionRequest  = "darkhold/interaction/request"
	MethodInteractionResolved = "darkhold/interaction/resolved"
	MethodThreadEvent         = "darkhold/thread-event"
	MethodTurnCompleted       = "turn/completed"
)

// Event sources recorded on synthesized envelopes.
const (
	SourceHTTP       = "http"
	SourceThreadRead = "thread/read"
)

// Event type emitted for a failed turn during rehydration.
const EventTypeTurnError = "turn.error"

// Envelope is a gateway-synthesized notification. It marshals into the same
// single-line shape as a child notification frame.
type Envelope struct {
	Method string      `json:"method"`
	Params interface{} `json:"params"`
}

// InteractionRequestParams describe a server-initiated request waiting for a
// client decision.
type InteractionRequestParams struct {
	ThreadId  string          `json:"threadId"`
	RequestId string          `json:"requestId"`
	Method    string          `json:"method"`
	Params    json.RawMessage `json:"params,omitempty"`
}

// InteractionResolvedParams announce that a pending interaction was answered.
type InteractionResolvedParams struct {
	ThreadId  string `json:"threadId"`
	RequestId string `json:"requestId"`
	Source    string `json:"source"`
}

// ThreadEventParams carry one rehydrated history item.
type ThreadEventParams struct {
	ThreadId string `json:"threadId"`
	Type     string `json:"type"`
	Message  string `json:"message"`
	Source   string `json:"source"`
}

// TurnCompletedParams close one rehydrated turn.
type TurnCompletedParams struct {
	ThreadId   string `json:"threadId"`
	Source     string `json:"source"`
	TurnNumber int    `json:"turnNumber"`
}

// NewInteractionRequestEvent renders the envelope announcing a pending
// interaction on its thread.
func NewInteractionRequestEvent(threadId, requestId, method string, params json.RawMessage) ([]byte, error) {
	return json.Marshal(&Envelope{
		Method: MethodInteractionRequest,
		Params: &InteractionRequestParams{ThreadId: threadId, RequestId: requestId, Method: method, Params: params},
	})
}

// NewInteractionResolvedEvent renders the envelope announcing that an
// interaction was resolved over HTTP.
func NewInteractionResolvedEvent(threadId, requestId string) ([]byte, error) {
	return json.Marshal(&Envelope{
		Method: MethodInteractionResolved,
		Params: &InteractionResolvedParams{ThreadId: threadId, RequestId: requestId, Source: SourceHTTP},
	})
}

// NewThreadEvent renders one rehydrated history envelope.
func NewThreadEvent(threadId, eventType, message string) ([]byte, error) {
	return json.Marshal(&Envelope{
		Method: MethodThreadEvent,
		Params: &ThreadEventParams{ThreadId: threadId, Type: eventType, Message: message, Source: SourceThreadRead},
	})
}

// NewTurnCompletedEvent renders the envelope closing a rehydrated turn.
// Turn numbers are 1-based.
func NewTurnCompletedEvent(threadId string, turnNumber int) ([]byte, error) {
	return json.Marshal(&Envelope{
		Method: MethodTurnCompleted,
		Params: &TurnCompletedParams{ThreadId: threadId, Source: SourceThreadRead, TurnNumber: turnNumber},
	})
}
