package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/viant/darkhold/interaction"
)

func startThread(t *testing.T, web string) {
	t.Helper()
	response, body := postJSON(t, web+"/api/rpc", `{"method":"thread/start","params":{"cwd":"/tmp"}}`)
	if response.StatusCode != http.StatusOK {
		t.Fatalf("thread/start failed: %d %s", response.StatusCode, body)
	}
}

func threadEvents(t *testing.T, web, threadId string) []string {
	t.Helper()
	response, body := getJSON(t, web+"/api/thread/events?threadId="+threadId)
	if response.StatusCode != http.StatusOK {
		t.Fatalf("events read failed: %d %s", response.StatusCode, body)
	}
	events := &threadEventsBody{}
	if err := json.Unmarshal([]byte(body), events); err != nil {
		t.Fatalf("failed to decode body %q: %v", body, err)
	}
	return events.Events
}

func TestServer_InteractionRespond(t *testing.T) {
	_, queue, web := newTestServer(t, respondByMethod(map[string]string{
		"thread/start": `"result":{"thread":{"id":"t1","turns":[]}}`,
	}))
	startThread(t, web.URL)
	runner := queue.runner(t, 0)

	runner.emit(`{"id":7,"method":"execCommandApproval","params":{"threadId":"t1","command":"ls"}}`)
	expectRequest := `{"method":"darkhold/interaction/request","params":` +
		`{"threadId":"t1","requestId":"7","method":"execCommandApproval",` +
		`"params":{"threadId":"t1","command":"ls"}}}`
	assert.EqualValues(t, []string{expectRequest}, threadEvents(t, web.URL, "t1"))

	response, body := postJSON(t, web.URL+"/api/thread/interaction/respond",
		`{"threadId":"t1","requestId":"7","result":{"decision":"approved"}}`)
	if response.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", response.StatusCode, body)
	}
	if body != `{"ok":true}`+"\n" {
		t.Errorf("unexpected body: %q", body)
	}
	sent := runner.sentLines()
	if len(sent) != 3 || sent[2] != `{"id":7,"result":{"decision":"approved"}}`+"\n" {
		t.Errorf("unexpected child traffic: %v", sent)
	}
	expectResolved := `{"method":"darkhold/interaction/resolved","params":` +
		`{"threadId":"t1","requestId":"7","source":"http"}}`
	assert.EqualValues(t, []string{expectRequest, expectResolved}, threadEvents(t, web.URL, "t1"))

	// A second answer for the same request finds nothing to resolve.
	response, body = postJSON(t, web.URL+"/api/thread/interaction/respond",
		`{"threadId":"t1","requestId":"7","result":{"decision":"denied"}}`)
	if response.StatusCode != http.StatusConflict || errorMessage(t, body) != interactionConflictMessage {
		t.Errorf("expected conflict, got %d %s", response.StatusCode, body)
	}

	// A client denial travels to the child as the error object.
	runner.emit(`{"id":9,"method":"applyPatchApproval","params":{"threadId":"t1"}}`)
	response, _ = postJSON(t, web.URL+"/api/thread/interaction/respond",
		`{"threadId":"t1","requestId":"9","error":{"code":-32600,"message":"denied"}}`)
	if response.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", response.StatusCode)
	}
	sent = runner.sentLines()
	if sent[len(sent)-1] != `{"id":9,"error":{"code":-32600,"message":"denied"}}`+"\n" {
		t.Errorf("unexpected child traffic: %v", sent)
	}

	// No payload at all acknowledges with a null result.
	runner.emit(`{"id":11,"method":"requestUserInput","params":{"threadId":"t1"}}`)
	response, _ = postJSON(t, web.URL+"/api/thread/interaction/respond",
		`{"threadId":"t1","requestId":"11"}`)
	if response.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", response.StatusCode)
	}
	sent = runner.sentLines()
	if sent[len(sent)-1] != `{"id":11,"result":null}`+"\n" {
		t.Errorf("unexpected child traffic: %v", sent)
	}
}

func TestServer_InteractionRespond_Validation(t *testing.T) {
	_, _, web := newTestServer(t, nil)

	response, _ := getJSON(t, web.URL+"/api/thread/interaction/respond")
	if response.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 for GET, got %d", response.StatusCode)
	}

	response, body := postJSON(t, web.URL+"/api/thread/interaction/respond", "{not json")
	if response.StatusCode != http.StatusBadRequest || errorMessage(t, body) != "Invalid JSON body." {
		t.Errorf("expected invalid body error, got %d %s", response.StatusCode, body)
	}

	response, body = postJSON(t, web.URL+"/api/thread/interaction/respond", `{"threadId":"t1"}`)
	if response.StatusCode != http.StatusBadRequest || errorMessage(t, body) != "threadId and requestId are required." {
		t.Errorf("expected missing ids error, got %d %s", response.StatusCode, body)
	}

	response, body = postJSON(t, web.URL+"/api/thread/interaction/respond",
		`{"threadId":"ghost","requestId":"1","result":{}}`)
	if response.StatusCode != http.StatusConflict || errorMessage(t, body) != interactionConflictMessage {
		t.Errorf("expected conflict, got %d %s", response.StatusCode, body)
	}
}

func TestServer_InteractionRespond_SoleThreadAttribution(t *testing.T) {
	s, queue, web := newTestServer(t, respondByMethod(map[string]string{
		"thread/start": `"result":{"thread":{"id":"t1","turns":[]}}`,
	}))
	startThread(t, web.URL)
	runner := queue.runner(t, 0)

	// No threadId in params; the session serves exactly one thread, so the
	// request lands there.
	runner.emit(`{"id":5,"method":"requestUserInput","params":{"questions":[]}}`)
	if s.broker.Len() != 1 {
		t.Fatalf("expected a pending interaction, got %d", s.broker.Len())
	}
	expectRequest := `{"method":"darkhold/interaction/request","params":` +
		`{"threadId":"t1","requestId":"5","method":"requestUserInput",` +
		`"params":{"questions":[]}}}`
	assert.EqualValues(t, []string{expectRequest}, threadEvents(t, web.URL, "t1"))

	response, _ := postJSON(t, web.URL+"/api/thread/interaction/respond",
		`{"threadId":"t1","requestId":"5","result":{"answers":[]}}`)
	if response.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", response.StatusCode)
	}
	sent := runner.sentLines()
	if sent[len(sent)-1] != `{"id":5,"result":{"answers":[]}}`+"\n" {
		t.Errorf("unexpected child traffic: %v", sent)
	}
}

func TestServer_InteractionDroppedWithoutThread(t *testing.T) {
	s, queue, web := newTestServer(t, respondByMethod(map[string]string{
		"thread/list": `"result":{"threads":[]}`,
	}))
	// thread/list binds nothing, so the session serves no thread at all.
	response, body := postJSON(t, web.URL+"/api/rpc", `{"method":"thread/list"}`)
	if response.StatusCode != http.StatusOK {
		t.Fatalf("thread/list failed: %d %s", response.StatusCode, body)
	}
	runner := queue.runner(t, 0)

	runner.emit(`{"id":5,"method":"requestUserInput","params":{"questions":[]}}`)
	if s.broker.Len() != 0 {
		t.Errorf("expected the unattributable request to be dropped, got %d pending", s.broker.Len())
	}
}

func TestServer_InteractionRespond_SessionGone(t *testing.T) {
	s, queue, web := newTestServer(t, respondByMethod(map[string]string{
		"thread/start": `"result":{"thread":{"id":"t1","turns":[]}}`,
	}))
	startThread(t, web.URL)
	runner := queue.runner(t, 0)

	// A record whose session never existed.
	s.broker.Register("t1", "99", &interaction.Record{SessionId: 777, UpstreamId: 99})
	response, body := postJSON(t, web.URL+"/api/thread/interaction/respond",
		`{"threadId":"t1","requestId":"99","result":{}}`)
	if response.StatusCode != http.StatusGone || errorMessage(t, body) != sessionGoneMessage {
		t.Errorf("expected gone, got %d %s", response.StatusCode, body)
	}

	// A live record whose child stopped accepting writes.
	runner.emit(`{"id":7,"method":"execCommandApproval","params":{"threadId":"t1"}}`)
	runner.failSends(errors.New("broken pipe"))
	response, body = postJSON(t, web.URL+"/api/thread/interaction/respond",
		`{"threadId":"t1","requestId":"7","result":{}}`)
	if response.StatusCode != http.StatusGone || errorMessage(t, body) != sessionGoneMessage {
		t.Errorf("expected gone, got %d %s", response.StatusCode, body)
	}
}

func TestServer_InteractionPurgedOnExit(t *testing.T) {
	s, queue, web := newTestServer(t, respondByMethod(map[string]string{
		"thread/start": `"result":{"thread":{"id":"t1","turns":[]}}`,
	}))
	startThread(t, web.URL)
	runner := queue.runner(t, 0)

	runner.emit(`{"id":7,"method":"execCommandApproval","params":{"threadId":"t1"}}`)
	if s.broker.Len() != 1 {
		t.Fatalf("expected a pending interaction, got %d", s.broker.Len())
	}
	runner.exit(nil)
	deadline := time.Now().Add(2 * time.Second)
	for s.broker.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if s.broker.Len() != 0 {
		t.Fatalf("expected the exit to purge pending interactions, got %d", s.broker.Len())
	}

	response, body := postJSON(t, web.URL+"/api/thread/interaction/respond",
		`{"threadId":"t1","requestId":"7","result":{}}`)
	if response.StatusCode != http.StatusConflict || errorMessage(t, body) != interactionConflictMessage {
		t.Errorf("expected conflict, got %d %s", response.StatusCode, body)
	}
}

func TestServer_InteractionConcurrentResponders(t *testing.T) {
	_, queue, web := newTestServer(t, respondByMethod(map[string]string{
		"thread/start": `"result":{"thread":{"id":"t1","turns":[]}}`,
	}))
	startThread(t, web.URL)
	runner := queue.runner(t, 0)
	runner.emit(`{"id":7,"method":"execCommandApproval","params":{"threadId":"t1","command":"rm"}}`)

	const responders = 8
	statuses := make(chan int, responders)
	var waitGroup sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < responders; i++ {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			<-start
			response, err := http.Post(web.URL+"/api/thread/interaction/respond", "application/json",
				strings.NewReader(`{"threadId":"t1","requestId":"7","result":{"decision":"approved"}}`))
			if err != nil {
				statuses <- 0
				return
			}
			_ = response.Body.Close()
			statuses <- response.StatusCode
		}()
	}
	close(start)
	waitGroup.Wait()
	close(statuses)

	var resolved, conflicted int
	for status := range statuses {
		switch status {
		case http.StatusOK:
			resolved++
		case http.StatusConflict:
			conflicted++
		default:
			t.Errorf("unexpected status %d", status)
		}
	}
	if resolved != 1 || conflicted != responders-1 {
		t.Errorf("expected exactly one winner, got %d ok / %d conflict", resolved, conflicted)
	}
	// Only the winner reached the child.
	sent := runner.sentLines()
	if len(sent) != 3 {
		t.Errorf("expected a single reply, got %v", sent)
	}
}
