package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, Event) {
	s.count.Add(1)
}

type gateSink struct {
	gate chan struct{}
}

func newGateSink() *gateSink {
	return &gateSink{gate: make(chan struct{})}
}

func (s *gateSink) Emit(context.Context, Event) {
	<-s.gate
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, &countingSink{})
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	d.Emit(context.Background(), NewEvent(UserCreated, time.Now()))
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher must report zero drops")
	}
}

func TestDispatcherDeliversAndDrainsOnClose(t *testing.T) {
	sink := &countingSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 16}, sink)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), NewEvent(SessionCreated, time.Now()))
	}
	d.Close()

	if got := sink.count.Load(); got != 10 {
		t.Fatalf("expected 10 delivered events, got %d", got)
	}
}

func TestDropIfFullDoesNotBlockAndReportsDrop(t *testing.T) {
	sink := newGateSink()
	var hooked atomic.Int64
	d := NewDispatcher(Config{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: true,
		OnDrop:     func(Event) { hooked.Add(1) },
	}, sink)
	defer func() {
		close(sink.gate)
		d.Close()
	}()

	d.Emit(context.Background(), Event{EventType: "e1"})
	d.Emit(context.Background(), Event{EventType: "e2"})

	start := time.Now()
	d.Emit(context.Background(), Event{EventType: "e3"})
	if time.Since(start) > 100*time.Millisecond {
		t.Fatal("expected non-blocking emit when DropIfFull is true")
	}
	if d.Dropped() == 0 {
		t.Fatal("expected dropped counter to increment when queue is full")
	}
	if hooked.Load() != int64(d.Dropped()) {
		t.Fatalf("OnDrop calls %d != dropped %d", hooked.Load(), d.Dropped())
	}
}

func TestBlockingEmitWaitsForSpace(t *testing.T) {
	sink := newGateSink()
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, sink)
	defer func() {
		close(sink.gate)
		d.Close()
	}()

	d.Emit(context.Background(), Event{EventType: "e1"})
	d.Emit(context.Background(), Event{EventType: "e2"})

	done := make(chan struct{})
	go func() {
		d.Emit(context.Background(), Event{EventType: "e3"})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("expected emit to block while buffer is full")
	case <-time.After(150 * time.Millisecond):
	}

	sink.gate <- struct{}{}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected blocked emit to proceed after space is available")
	}
}

func TestCloseIdempotentAndEmitAfterCloseSafe(t *testing.T) {
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4, DropIfFull: true}, &countingSink{})

	if !d.Emit(context.Background(), Event{EventType: "e1"}) {
		t.Fatal("expected event to be accepted before close")
	}
	d.Close()
	d.Close()
	if d.Emit(context.Background(), Event{EventType: "e2"}) {
		t.Fatal("emit after close must be rejected")
	}
}

func TestBlockingEmitHonorsContext(t *testing.T) {
	sink := newGateSink()
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, sink)
	defer func() {
		close(sink.gate)
		d.Close()
	}()

	d.Emit(context.Background(), Event{EventType: "e1"})
	d.Emit(context.Background(), Event{EventType: "e2"})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if d.Emit(ctx, Event{EventType: "e3"}) {
		t.Fatal("expected emit to give up when the context expires")
	}
}

func TestDeliveryOrderPreserved(t *testing.T) {
	sink := NewChannelSink(8)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 8}, sink)

	for _, typ := range []string{UserCreated, EmailAdded, EmailVerified} {
		d.Emit(context.Background(), NewEvent(typ, time.Now()))
	}
	d.Close()

	for _, want := range []string{UserCreated, EmailAdded, EmailVerified} {
		if got := (<-sink.Events()).EventType; got != want {
			t.Fatalf("expected %s, got %s", want, got)
		}
	}
}

func TestJSONWriterSinkWritesJSONLines(t *testing.T) {
	var buf syncBuffer
	sink := NewJSONWriterSink(&buf)

	event := NewEvent(EmailAdded, time.Now())
	event.Username = "alice"
	sink.Emit(context.Background(), event)

	var decoded Event
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &decoded); err != nil {
		t.Fatalf("decode line: %v", err)
	}
	if decoded.EventType != EmailAdded || decoded.Username != "alice" {
		t.Fatalf("unexpected event %+v", decoded)
	}
	if decoded.ID == "" || decoded.ID != event.ID {
		t.Fatalf("expected id %q, got %q", event.ID, decoded.ID)
	}
}

func TestNewEventIDsAreUnique(t *testing.T) {
	a := NewEvent(RoleCreated, time.Now())
	b := NewEvent(RoleCreated, time.Now())
	if a.ID == b.ID {
		t.Fatal("expected distinct event ids")
	}
	if !a.Success {
		t.Fatal("events default to success")
	}
}
