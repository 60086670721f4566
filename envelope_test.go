package darkhold

import (
	"testing"
)

func TestEnvelopes(t *testing.T) {
	tests := []struct {
		name  string
		build func() ([]byte, error)
		want  string
	}{
		{
			name: "interaction request",
			build: func() ([]byte, error) {
				return NewInteractionRequestEvent("t1", "7", "execCommandApproval", []byte(`{"command":"ls"}`))
			},
			want: `{"method":"darkhold/interaction/request","params":{"threadId":"t1","requestId":"7","method":"execCommandApproval","params":{"command":"ls"}}}`,
		},
		{
			name: "interaction request without params",
			build: func() ([]byte, error) {
				return NewInteractionRequestEvent("t1", "8", "userInput", nil)
			},
			want: `{"method":"darkhold/interaction/request","params":{"threadId":"t1","requestId":"8","method":"userInput"}}`,
		},
		{
			name: "interaction resolved",
			build: func() ([]byte, error) {
				return NewInteractionResolvedEvent("t1", "7")
			},
			want: `{"method":"darkhold/interaction/resolved","params":{"threadId":"t1","requestId":"7","source":"http"}}`,
		},
		{
			name: "thread event",
			build: func() ([]byte, error) {
				return NewThreadEvent("t1", "user.input", "hi")
			},
			want: `{"method":"darkhold/thread-event","params":{"threadId":"t1","type":"user.input","message":"hi","source":"thread/read"}}`,
		},
		{
			name: "turn completed",
			build: func() ([]byte, error) {
				return NewTurnCompletedEvent("t1", 2)
			},
			want: `{"method":"turn/completed","params":{"threadId":"t1","source":"thread/read","turnNumber":2}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.build()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}
