package darkhold

import (
	"testing"
)

func TestParseFrame_Classification(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		want      FrameType
		wantId    int64
		hasId     bool
		wantError bool
	}{
		{
			name:   "response with result",
			input:  `{"id":1000000,"result":{"ok":true}}`,
			want:   FrameTypeResponse,
			wantId: 1000000,
			hasId:  true,
		},
		{
			name:   "response with null result",
			input:  `{"id":1000000,"result":null}`,
			want:   FrameTypeResponse,
			wantId: 1000000,
			hasId:  true,
		},
		{
			name:   "response with error",
			input:  `{"id":2000000,"error":{"message":"boom"}}`,
			want:   FrameTypeResponse,
			wantId: 2000000,
			hasId:  true,
		},
		{
			name:   "server initiated request",
			input:  `{"id":7,"method":"execCommandApproval","params":{"threadId":"t1"}}`,
			want:   FrameTypeRequest,
			wantId: 7,
			hasId:  true,
		},
		{
			name:  "notification",
			input: `{"method":"turn/started","params":{"threadId":"t1"}}`,
			want:  FrameTypeNotification,
		},
		{
			name:  "string id treated as absent",
			input: `{"id":"abc","method":"ping"}`,
			want:  FrameTypeNotification,
		},
		{
			name:  "no method no id",
			input: `{"foo":1}`,
			want:  FrameTypeUnknown,
		},
		{
			name:      "not an object",
			input:     `[1,2,3]`,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := ParseFrame([]byte(tt.input))
			if tt.wantError {
				if err == nil {
					t.Errorf("expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := frame.Type(); got != tt.want {
				t.Errorf("Type: got %v, want %v", got, tt.want)
			}
			if tt.hasId {
				if frame.Id == nil {
					t.Fatalf("expected id %d, got none", tt.wantId)
				}
				if *frame.Id != tt.wantId {
					t.Errorf("Id: got %d, want %d", *frame.Id, tt.wantId)
				}
			} else if frame.Id != nil {
				t.Errorf("expected no id, got %d", *frame.Id)
			}
		})
	}
}

func TestFrame_ThreadId(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "params with threadId",
			input: `{"method":"turn/started","params":{"threadId":"t1","turn":1}}`,
			want:  "t1",
		},
		{
			name:  "params without threadId",
			input: `{"method":"turn/started","params":{"turn":1}}`,
			want:  "",
		},
		{
			name:  "no params",
			input: `{"method":"ping"}`,
			want:  "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := ParseFrame([]byte(tt.input))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := frame.ThreadId(); got != tt.want {
				t.Errorf("ThreadId: got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFrame_RequestId(t *testing.T) {
	frame, err := ParseFrame([]byte(`{"id":42,"method":"applyPatchApproval"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := frame.RequestId(); got != "42" {
		t.Errorf("RequestId: got %q, want %q", got, "42")
	}
	frame, err = ParseFrame([]byte(`{"method":"ping"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := frame.RequestId(); got != "" {
		t.Errorf("RequestId: got %q, want empty", got)
	}
}

func TestNewRequest(t *testing.T) {
	tests := []struct {
		name   string
		id     int64
		method string
		params string
		want   string
	}{
		{
			name:   "with params",
			id:     1000000,
			method: "thread/start",
			params: `{"cwd":"/tmp"}`,
			want:   `{"id":1000000,"method":"thread/start","params":{"cwd":"/tmp"}}`,
		},
		{
			name:   "without params",
			id:     2000000,
			method: "initialize",
			want:   `{"id":2000000,"method":"initialize"}`,
		},
		{
			name:   "null params omitted",
			id:     3000000,
			method: "ping",
			params: `null`,
			want:   `{"id":3000000,"method":"ping"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var params []byte
			if tt.params != "" {
				params = []byte(tt.params)
			}
			got, err := NewRequest(tt.id, tt.method, params)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNewReply(t *testing.T) {
	tests := []struct {
		name      string
		id        int64
		result    string
		errObject string
		want      string
	}{
		{
			name:   "result",
			id:     7,
			result: `{"decision":"accept"}`,
			want:   `{"id":7,"result":{"decision":"accept"}}`,
		},
		{
			name:      "error wins over result",
			id:        7,
			result:    `{"decision":"accept"}`,
			errObject: `{"message":"denied"}`,
			want:      `{"id":7,"error":{"message":"denied"}}`,
		},
		{
			name: "neither defaults to null result",
			id:   9,
			want: `{"id":9,"result":null}`,
		},
		{
			name:      "explicit nulls behave as absent",
			id:        9,
			result:    `null`,
			errObject: `null`,
			want:      `{"id":9,"result":null}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var result, errObject []byte
			if tt.result != "" {
				result = []byte(tt.result)
			}
			if tt.errObject != "" {
				errObject = []byte(tt.errObject)
			}
			got, err := NewReply(tt.id, result, errObject)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestErrors(t *testing.T) {
	closed := NewTransportClosedError(3, nil)
	if closed.Error() != "app-server exited" {
		t.Errorf("unexpected message: %q", closed.Error())
	}
	if !IsTransportClosed(closed) {
		t.Errorf("IsTransportClosed should match")
	}
	if IsTransportClosed(NewRPCTimeoutError("x")) {
		t.Errorf("IsTransportClosed should not match a timeout")
	}
	timeout := NewRPCTimeoutError("thread/start")
	if timeout.Error() != "RPC request timed out: thread/start" {
		t.Errorf("unexpected message: %q", timeout.Error())
	}
	if !IsRPCTimeout(timeout) {
		t.Errorf("IsRPCTimeout should match")
	}
	rpcErr := &Error{Message: ""}
	if rpcErr.Error() != "RPC error" {
		t.Errorf("empty child error should read %q, got %q", "RPC error", rpcErr.Error())
	}
}
