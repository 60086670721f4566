package appserver

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func waitFor(t *testing.T, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !condition() {
		if time.Now().After(deadline) {
			t.Fatal("condition was never met")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestManager_Select(t *testing.T) {
	var runners []*fakeRunner
	factory := func() Runner {
		fake := newFakeRunner()
		runners = append(runners, fake)
		return fake
	}
	manager := NewManager(WithRunnerFactory(factory))
	ctx := context.Background()

	first, err := manager.Select(ctx, "")
	if err != nil {
		t.Fatalf("Select() failed: %v", err)
	}
	if first.Id() != 1 {
		t.Errorf("first session id = %d", first.Id())
	}

	again, err := manager.Select(ctx, "")
	if err != nil {
		t.Fatalf("Select() failed: %v", err)
	}
	if again != first {
		t.Errorf("a live session must be reused, not respawned")
	}

	manager.Bind("t1", first)
	bound, err := manager.Select(ctx, "t1")
	if err != nil {
		t.Fatalf("Select() failed: %v", err)
	}
	if bound != first {
		t.Errorf("affinity hit must return the bound session")
	}
	if got, ok := manager.Session(first.Id()); !ok || got != first {
		t.Errorf("Session() lookup failed")
	}
	if _, ok := manager.Session(99); ok {
		t.Errorf("Session(99) should miss")
	}

	runners[0].exit(nil)
	waitFor(t, func() bool { return manager.Len() == 0 })

	replacement, err := manager.Select(ctx, "t1")
	if err != nil {
		t.Fatalf("Select() failed: %v", err)
	}
	if replacement == first || replacement.Id() != 2 {
		t.Errorf("a dead session must be replaced, got id %d", replacement.Id())
	}
	if len(runners) != 2 {
		t.Errorf("expected 2 spawns, got %d", len(runners))
	}
}

func TestManager_Bind_SoleThread(t *testing.T) {
	var fake *fakeRunner
	manager := NewManager(WithRunnerFactory(func() Runner {
		fake = newFakeRunner()
		return fake
	}))
	session, err := manager.Select(context.Background(), "")
	if err != nil {
		t.Fatalf("Select() failed: %v", err)
	}

	if got := session.SoleThread(); got != "" {
		t.Errorf("SoleThread() = %q before any bind", got)
	}
	manager.Bind("t1", session)
	manager.Bind("t1", session) // idempotent
	if got := session.SoleThread(); got != "t1" {
		t.Errorf("SoleThread() = %q", got)
	}
	manager.Bind("t2", session)
	if got := session.SoleThread(); got != "" {
		t.Errorf("SoleThread() = %q with two threads", got)
	}
}

func TestManager_Call_Interceptors(t *testing.T) {
	var fake *fakeRunner
	var intercepted []string
	interceptor := InterceptorFunc(func(ctx context.Context, session *Session, method string, result json.RawMessage) error {
		intercepted = append(intercepted, method+"="+string(result))
		return errors.New("interceptor hiccup")
	})
	manager := NewManager(
		WithRunnerFactory(func() Runner {
			fake = newFakeRunner()
			return fake
		}),
		WithInterceptor(interceptor),
	)
	ctx := context.Background()
	session, err := manager.Select(ctx, "")
	if err != nil {
		t.Fatalf("Select() failed: %v", err)
	}

	fake.echoResult(`{"thread":{"id":"t1"}}`)
	response, err := manager.Call(ctx, session, "thread/start", nil)
	if err != nil {
		t.Fatalf("Call() failed: %v", err)
	}
	if string(response.Result) != `{"thread":{"id":"t1"}}` {
		t.Errorf("unexpected result: %s", response.Result)
	}
	if len(intercepted) != 1 || intercepted[0] != `thread/start={"thread":{"id":"t1"}}` {
		t.Errorf("interceptor saw %v", intercepted)
	}

	// a child error skips interceptors and still reaches the caller
	fake.echoError(`{"message":"no such thread"}`)
	response, err = manager.Call(ctx, session, "thread/read", nil)
	if err != nil {
		t.Fatalf("Call() failed: %v", err)
	}
	if response.Error == nil || response.Error.Message != "no such thread" {
		t.Errorf("expected child error, got %+v", response.Error)
	}
	if len(intercepted) != 1 {
		t.Errorf("interceptor must not run on child errors")
	}
}

func TestManager_ExitRemovesSessionAfterHandler(t *testing.T) {
	var runners []*fakeRunner
	handler := &recordingHandler{}
	manager := NewManager(
		WithHandler(handler),
		WithRunnerFactory(func() Runner {
			fake := newFakeRunner()
			runners = append(runners, fake)
			return fake
		}),
	)
	lenAtExit := make(chan int, 1)
	handler.onExit = func(session *Session, err error) {
		lenAtExit <- manager.Len()
	}
	ctx := context.Background()
	session, err := manager.Select(ctx, "")
	if err != nil {
		t.Fatalf("Select() failed: %v", err)
	}
	manager.Bind("t1", session)

	runners[0].exit(errors.New("crash"))
	if n := <-lenAtExit; n != 1 {
		t.Errorf("session must still be registered while OnExit runs, len=%d", n)
	}
	waitFor(t, func() bool { return manager.Len() == 0 })

	// affinity is gone with the session
	replacement, err := manager.Select(ctx, "t1")
	if err != nil {
		t.Fatalf("Select() failed: %v", err)
	}
	if replacement.Id() != 2 {
		t.Errorf("expected a fresh session, got id %d", replacement.Id())
	}
}

func TestManager_Shutdown(t *testing.T) {
	var fake *fakeRunner
	manager := NewManager(WithRunnerFactory(func() Runner {
		fake = newFakeRunner()
		fake.exitOnInterrupt = true
		return fake
	}))
	if _, err := manager.Select(context.Background(), ""); err != nil {
		t.Fatalf("Select() failed: %v", err)
	}
	if err := manager.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() failed: %v", err)
	}
	if fake.interrupts != 1 {
		t.Errorf("interrupts = %d", fake.interrupts)
	}
}
