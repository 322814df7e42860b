// pkg/event/event_test.go
package event

import (
	"sync"
	"testing"

	"github.com/opd-ai/go-shipbattle/pkg/entity"
)

func TestNewEventBus_Creation_ReturnsInitializedBus(t *testing.T) {
	bus := NewEventBus()

	if bus == nil {
		t.Fatal("NewEventBus() returned nil")
	}
	if bus.handlers == nil {
		t.Error("handlers map not initialized")
	}
	if bus.nextID != 1 {
		t.Errorf("expected nextID to be 1, got %d", bus.nextID)
	}
}

func TestBaseEvent_GetType_ReturnsCorrectType(t *testing.T) {
	tests := []struct {
		name      string
		eventType Type
		source    interface{}
	}{
		{name: "TurnStarted event", eventType: TurnStarted, source: "driver"},
		{name: "ShipAdded event", eventType: ShipAdded, source: 123},
		{name: "Empty source", eventType: BattleEnded, source: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := &BaseEvent{EventType: tt.eventType, Source: tt.source}

			if event.GetType() != tt.eventType {
				t.Errorf("GetType() = %v, want %v", event.GetType(), tt.eventType)
			}
			if event.GetSource() != tt.source {
				t.Errorf("GetSource() = %v, want %v", event.GetSource(), tt.source)
			}
		})
	}
}

func TestBusSubscribe_SingleHandler_ReturnsValidSubscription(t *testing.T) {
	bus := NewEventBus()

	sub := bus.Subscribe(ShipAdded, func(e Event) {})

	if sub == nil {
		t.Fatal("Subscribe() returned nil subscription")
	}
	if sub.ID == 0 {
		t.Error("subscription ID should not be 0")
	}
	if sub.Cancel == nil {
		t.Error("subscription Cancel function should not be nil")
	}

	bus.mu.RLock()
	handlers := bus.handlers[ShipAdded]
	bus.mu.RUnlock()

	if len(handlers) != 1 {
		t.Errorf("expected 1 handler, got %d", len(handlers))
	}
}

func TestBusPublish_WrongEventType_HandlersNotCalled(t *testing.T) {
	bus := NewEventBus()
	called := false
	bus.Subscribe(ShipAdded, func(e Event) { called = true })

	bus.Publish(&BaseEvent{EventType: ShipRemoved})

	if called {
		t.Error("handler for ShipAdded called for ShipRemoved")
	}
}

func TestSubscriptionCancel_OnlyTargetRemoved(t *testing.T) {
	bus := NewEventBus()
	var calls []string

	first := bus.Subscribe(TurnStarted, func(e Event) { calls = append(calls, "first") })
	bus.Subscribe(TurnStarted, func(e Event) { calls = append(calls, "second") })

	first.Cancel()
	first.Cancel()
	bus.Publish(NewTurnEvent(TurnStarted, nil, 1, 0))

	if len(calls) != 1 || calls[0] != "second" {
		t.Errorf("calls = %v, want [second]", calls)
	}
}

func TestBusPublish_HandlerMayCancelDuringDispatch(t *testing.T) {
	bus := NewEventBus()
	count := 0
	var sub *Subscription
	sub = bus.Subscribe(TurnEnded, func(e Event) {
		count++
		sub.Cancel()
	})

	bus.Publish(NewTurnEvent(TurnEnded, nil, 1, 50))
	bus.Publish(NewTurnEvent(TurnEnded, nil, 2, 50))

	if count != 1 {
		t.Errorf("handler ran %d times, want 1", count)
	}
}

func TestBusSubscribe_ConcurrentAccess_ThreadSafe(t *testing.T) {
	bus := NewEventBus()
	var wg sync.WaitGroup
	var mu sync.Mutex
	handlerCount := 0

	handler := func(e Event) {
		mu.Lock()
		handlerCount++
		mu.Unlock()
	}

	numGoroutines := 10
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			bus.Subscribe(PlayerJoined, handler)
		}()
	}
	wg.Wait()

	wg.Add(3)
	for i := 0; i < 3; i++ {
		go func() {
			defer wg.Done()
			bus.Publish(NewPlayerEvent(PlayerJoined, nil, 1, 1, "ace"))
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if handlerCount != numGoroutines*3 {
		t.Errorf("expected %d handler calls, got %d", numGoroutines*3, handlerCount)
	}
}

func TestNewShipEvent_ValidParameters_ReturnsCorrectEvent(t *testing.T) {
	ship := entity.NewShip(4, "scout")
	e := NewShipEvent(ShipAdded, "context", 4, ship)

	if e.GetType() != ShipAdded {
		t.Errorf("GetType() = %v, want %v", e.GetType(), ShipAdded)
	}
	if e.ShipID != 4 || e.Ship != ship {
		t.Errorf("unexpected ship payload: %+v", e)
	}
}
