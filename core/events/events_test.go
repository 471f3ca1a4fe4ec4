package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// testLogger returns a disabled logger for tests
func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestNewBus(t *testing.T) {
	bus := NewBus(testLogger())
	if bus == nil {
		t.Fatal("NewBus returned nil")
	}
	if len(bus.handlers) != 0 {
		t.Error("handlers map should be empty on creation")
	}
}

func TestPublish_CallOrder(t *testing.T) {
	bus := NewBus(testLogger())

	var mu sync.Mutex
	var order []int
	for i := 1; i <= 3; i++ {
		i := i
		bus.Subscribe(ValueChanged, func(ctx context.Context, event Event) error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		})
	}

	bus.Publish(context.Background(), Event{Name: ValueChanged, Path: "username"})

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("call order = %v, want [1 2 3]", order)
	}
}

func TestPublish_Wildcards(t *testing.T) {
	tests := []struct {
		subscribe string
		publish   string
		want      bool
	}{
		{"value.changed", "value.changed", true},
		{"value.*", "value.changed", true},
		{"value.*", "value.expired", true},
		{"value.*", "mode.switched", false},
		{"*", "visibility.changed", true},
		{"mode.switched", "value.changed", false},
	}

	for _, tt := range tests {
		t.Run(tt.subscribe+"->"+tt.publish, func(t *testing.T) {
			bus := NewBus(testLogger())
			var called atomic.Bool
			bus.Subscribe(tt.subscribe, func(ctx context.Context, event Event) error {
				called.Store(true)
				return nil
			})

			bus.Publish(context.Background(), Event{Name: tt.publish})

			if called.Load() != tt.want {
				t.Errorf("handler called = %v, want %v", called.Load(), tt.want)
			}
			if bus.HasSubscribers(tt.publish) != tt.want {
				t.Errorf("HasSubscribers(%q) = %v, want %v", tt.publish, !tt.want, tt.want)
			}
		})
	}
}

func TestPublish_HandlerErrorContinues(t *testing.T) {
	bus := NewBus(testLogger())

	var second atomic.Bool
	bus.Subscribe(ModeSwitched, func(ctx context.Context, event Event) error {
		return errors.New("boom")
	})
	bus.Subscribe(ModeSwitched, func(ctx context.Context, event Event) error {
		second.Store(true)
		return nil
	})

	bus.Publish(context.Background(), Event{Name: ModeSwitched})

	if !second.Load() {
		t.Error("second handler should run after first returned an error")
	}
}

func TestPublish_PassesEvent(t *testing.T) {
	bus := NewBus(testLogger())

	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var got Event
	bus.Subscribe(VisibilityChanged, func(ctx context.Context, event Event) error {
		got = event
		return nil
	})

	bus.Publish(context.Background(), Event{
		Name:    VisibilityChanged,
		Context: "ctx-1",
		Path:    "advanced.timeout",
		Data:    map[string]any{"visible": true},
		At:      at,
	})

	if got.Context != "ctx-1" || got.Path != "advanced.timeout" || !got.At.Equal(at) {
		t.Errorf("event = %+v", got)
	}
	if got.Data["visible"] != true {
		t.Errorf("Data[visible] = %v, want true", got.Data["visible"])
	}
}

func TestPublishAsync(t *testing.T) {
	bus := NewBus(testLogger())

	done := make(chan struct{})
	bus.Subscribe(ValidationCompleted, func(ctx context.Context, event Event) error {
		close(done)
		return nil
	})

	bus.PublishAsync(context.Background(), Event{Name: ValidationCompleted})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("async handler was not called")
	}
}

func TestHasSubscribers_None(t *testing.T) {
	bus := NewBus(testLogger())
	if bus.HasSubscribers(ValueChanged) {
		t.Error("HasSubscribers should be false on an empty bus")
	}
}
