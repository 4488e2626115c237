package event

import (
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestPublishSubscribe(t *testing.T) {
	bus := NewBus(testLogger(), 16)

	var mu sync.Mutex
	var got []Event
	bus.Subscribe(SongCreated, func(e Event) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
	})

	go bus.Start()

	bus.Publish(Event{Type: SongCreated, Data: map[string]any{"title": "Everlong"}})
	bus.Publish(Event{Type: MatchProgress}) // no subscriber, must not block

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("expected 1 event, got %d", n)
		case <-time.After(5 * time.Millisecond):
		}
	}

	if got[0].Data["title"] != "Everlong" {
		t.Errorf("unexpected payload: %v", got[0].Data)
	}
	if got[0].Timestamp.IsZero() {
		t.Error("expected timestamp to be stamped")
	}

	bus.Stop()
}

func TestStopDrainsBuffer(t *testing.T) {
	bus := NewBus(testLogger(), 16)

	var mu sync.Mutex
	count := 0
	bus.Subscribe(MatchCompleted, func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	for range 5 {
		bus.Publish(Event{Type: MatchCompleted})
	}

	done := make(chan struct{})
	go func() {
		bus.Start()
		close(done)
	}()
	bus.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Stop")
	}

	mu.Lock()
	defer mu.Unlock()
	if count != 5 {
		t.Errorf("expected 5 events after drain, got %d", count)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	bus := NewBus(testLogger(), 1)
	bus.Stop()
	bus.Stop()
}

func TestHandlerPanicIsContained(t *testing.T) {
	bus := NewBus(testLogger(), 16)

	fired := make(chan struct{})
	bus.Subscribe(SearchCompleted, func(Event) { panic("boom") })
	bus.Subscribe(SearchCompleted, func(Event) { close(fired) })

	go bus.Start()
	defer bus.Stop()

	bus.Publish(Event{Type: SearchCompleted})

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("second handler did not run after first panicked")
	}
}
