package dispatcher

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// testLogger implements Logger for testing
type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *testLogger) Debug(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("DEBUG: %s %v", msg, keysAndValues))
}

func (l *testLogger) Info(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("INFO: %s %v", msg, keysAndValues))
}

func (l *testLogger) Error(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("ERROR: %s %v", msg, keysAndValues))
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *testLogger) {
	logger := &testLogger{}

	d, err := New(logger)
	if err != nil {
		t.Fatalf("failed to create dispatcher: %v", err)
	}

	return d, logger
}

func TestDispatcher_SyncHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	called := false
	d.Register(":MODE:", func(e Event) (any, error) {
		called = true
		return "result", nil
	})

	result, err := d.Dispatch(Event{Command: ":MODE:", Args: []string{"passive"}})

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !called {
		t.Error("handler was not called")
	}
	if result != "result" {
		t.Errorf("expected 'result', got %v", result)
	}
}

func TestDispatcher_UnknownCommand(t *testing.T) {
	d, _ := newTestDispatcher(t)

	_, err := d.Dispatch(Event{Command: ":UNKNOWN:"})

	if err == nil {
		t.Error("expected error for unknown command")
	}
}

func TestDispatcher_BufferedHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var processed atomic.Int32
	var wg sync.WaitGroup
	wg.Add(3)

	d.Register(":JOURNAL:", func(e Event) (any, error) {
		processed.Add(1)
		wg.Done()
		return nil, nil
	}, Buffered(100))

	// Dispatch 3 events
	for i := 0; i < 3; i++ {
		result, err := d.Dispatch(Event{Command: ":JOURNAL:"})
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if result != "queued" {
			t.Errorf("expected 'queued', got %v", result)
		}
	}

	// Wait for processing
	wg.Wait()

	if processed.Load() != 3 {
		t.Errorf("expected 3 processed, got %d", processed.Load())
	}
}

func TestDispatcher_BufferedDropsWhenFull(t *testing.T) {
	d, _ := newTestDispatcher(t)

	// Block the handler so queue fills up
	block := make(chan struct{})
	d.Register(":SHAPES:", func(e Event) (any, error) {
		<-block
		return nil, nil
	}, Buffered(2))

	// Fill the queue (2 items) + 1 being processed
	d.Dispatch(Event{Command: ":SHAPES:"}) // being processed
	d.Dispatch(Event{Command: ":SHAPES:"}) // queued
	d.Dispatch(Event{Command: ":SHAPES:"}) // queued

	// This should be dropped
	_, err := d.Dispatch(Event{Command: ":SHAPES:"})

	if err == nil {
		t.Error("expected error when queue is full")
	}

	close(block)
}

func TestDispatcher_BufferedBlocking(t *testing.T) {
	d, _ := newTestDispatcher(t)

	block := make(chan struct{})
	d.Register(":JOURNAL:", func(e Event) (any, error) {
		<-block
		return nil, nil
	}, Buffered(1), Blocking())

	// First event starts processing
	d.Dispatch(Event{Command: ":JOURNAL:"})
	// Second event fills the queue
	d.Dispatch(Event{Command: ":JOURNAL:"})

	// Third event should block (test with timeout)
	done := make(chan struct{})
	go func() {
		d.Dispatch(Event{Command: ":JOURNAL:"})
		close(done)
	}()

	select {
	case <-done:
		t.Error("dispatch should have blocked")
	case <-time.After(50 * time.Millisecond):
		// Expected - dispatch is blocking
	}

	close(block)
}

func TestDispatcher_LoggedHandler(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register(":PAUSE:", func(e Event) (any, error) {
		return "ok", nil
	}, Logged())

	d.Dispatch(Event{Command: ":PAUSE:", Args: []string{"a", "b"}})

	// Give time for logging
	time.Sleep(10 * time.Millisecond)

	logger.mu.Lock()
	defer logger.mu.Unlock()

	if len(logger.messages) < 2 {
		t.Errorf("expected at least 2 log messages, got %d", len(logger.messages))
	}
}

func TestDispatcher_LoggedHandlerError(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register(":PROCEED:", func(e Event) (any, error) {
		return nil, fmt.Errorf("no pending kickoff")
	}, Logged())

	d.Dispatch(Event{Command: ":PROCEED:"})

	logger.mu.Lock()
	defer logger.mu.Unlock()

	hasError := false
	for _, msg := range logger.messages {
		if len(msg) >= 5 && msg[:5] == "ERROR" {
			hasError = true
			break
		}
	}

	if !hasError {
		t.Error("expected error log message")
	}
}

func TestDispatcher_HasHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	d.Register(":STATUS:", func(e Event) (any, error) { return nil, nil })

	if !d.HasHandler(":STATUS:") {
		t.Error("expected handler to exist")
	}

	if d.HasHandler(":REPLAY:") {
		t.Error("expected handler to not exist")
	}
}

func TestDispatcher_CombinedOptions(t *testing.T) {
	d, logger := newTestDispatcher(t)

	var processed atomic.Int32
	var wg sync.WaitGroup
	wg.Add(1)

	d.Register(":JOURNAL:", func(e Event) (any, error) {
		processed.Add(1)
		wg.Done()
		return "done", nil
	}, Buffered(100), Logged())

	result, err := d.Dispatch(Event{Command: ":JOURNAL:"})

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if result != "queued" {
		t.Errorf("expected 'queued', got %v", result)
	}

	wg.Wait()

	if processed.Load() != 1 {
		t.Errorf("expected 1 processed, got %d", processed.Load())
	}

	logger.mu.Lock()
	defer logger.mu.Unlock()

	if len(logger.messages) < 2 {
		t.Errorf("expected log messages, got %d", len(logger.messages))
	}
}

func TestParseLine(t *testing.T) {
	now := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		line string
		cmd  string
		args []string
		ok   bool
	}{
		{":MODE: passive", ":MODE:", []string{"passive"}, true},
		{"  mode   active  ", ":MODE:", []string{}, true},
		{":detector:disable: BOT_CRASH", ":DETECTOR:DISABLE:", []string{"BOT_CRASH"}, true},
		{"", "", nil, false},
		{"# comment", "", nil, false},
		{"::", "", nil, false},
	}

	for _, tt := range tests {
		e, ok := ParseLine(tt.line, now)
		if ok != tt.ok {
			t.Errorf("ParseLine(%q) ok = %v, want %v", tt.line, ok, tt.ok)
			continue
		}
		if !ok {
			continue
		}
		if e.Command != tt.cmd {
			t.Errorf("ParseLine(%q) command = %q, want %q", tt.line, e.Command, tt.cmd)
		}
		if !e.Timestamp.Equal(now) {
			t.Errorf("ParseLine(%q) timestamp = %v", tt.line, e.Timestamp)
		}
	}

	e, _ := ParseLine(":MODE: passive", now)
	if len(e.Args) != 1 || e.Args[0] != "passive" {
		t.Errorf("unexpected args %v", e.Args)
	}
	e, _ = ParseLine("  mode   active  ", now)
	if len(e.Args) != 1 || e.Args[0] != "active" {
		t.Errorf("unexpected args %v", e.Args)
	}
}

func TestDispatcher_Commands(t *testing.T) {
	d, _ := newTestDispatcher(t)

	d.Register(":STATUS:", func(e Event) (any, error) { return nil, nil })
	d.Register(":MODE:", func(e Event) (any, error) { return nil, nil })

	got := d.Commands()
	if len(got) != 2 || got[0] != ":MODE:" || got[1] != ":STATUS:" {
		t.Errorf("unexpected commands %v", got)
	}
}

func TestDispatcher_CloseDrainsBuffer(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var mu sync.Mutex
	var payloads []any
	d.Register(":JOURNAL:", func(e Event) (any, error) {
		time.Sleep(time.Millisecond)
		mu.Lock()
		defer mu.Unlock()
		payloads = append(payloads, e.Payload)
		return nil, nil
	}, Buffered(16), Blocking())

	for i := 0; i < 5; i++ {
		if _, err := d.Dispatch(Event{Command: ":JOURNAL:", Payload: i}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	d.Close()
	d.Close()

	mu.Lock()
	if len(payloads) != 5 {
		t.Errorf("expected 5 handled payloads, got %d", len(payloads))
	}
	for i, p := range payloads {
		if p != i {
			t.Errorf("payload %d = %v", i, p)
		}
	}
	mu.Unlock()

	if _, err := d.Dispatch(Event{Command: ":JOURNAL:"}); err != ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestDispatcher_BufferedErrorIsLogged(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register(":JOURNAL:", func(e Event) (any, error) {
		return nil, fmt.Errorf("disk full")
	}, Buffered(4))

	d.Dispatch(Event{Command: ":JOURNAL:"})
	d.Close()

	logger.mu.Lock()
	defer logger.mu.Unlock()

	if len(logger.messages) != 1 || logger.messages[0][:5] != "ERROR" {
		t.Errorf("expected one error message, got %v", logger.messages)
	}
}
