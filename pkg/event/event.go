// pkg/event/event.go
package event

import (
	"sync"

	"github.com/opd-ai/go-shipbattle/pkg/entity"
)

// Type represents the type of event
type Type string

// Battle lifecycle event types
const (
	TurnStarted        Type = "turn_started"
	PlanSent           Type = "plan_sent"
	ResultsReceived    Type = "results_received"
	TurnEnded          Type = "turn_ended"
	ShipAdded          Type = "ship_added"
	ShipRemoved        Type = "ship_removed"
	PlayerShipReplaced Type = "player_ship_replaced"
	PlayerJoined       Type = "player_joined"
	PlayerLeft         Type = "player_left"
	BattleEnded        Type = "battle_ended"
)

// Event is the base interface for all events
type Event interface {
	GetType() Type
	GetSource() interface{}
}

// BaseEvent provides common functionality for all events
type BaseEvent struct {
	EventType Type
	Source    interface{}
}

// GetType returns the event type
func (e *BaseEvent) GetType() Type {
	return e.EventType
}

// GetSource returns the event source
func (e *BaseEvent) GetSource() interface{} {
	return e.Source
}

// Handler is a function that handles events
type Handler func(Event)

// Subscription identifies a registered handler. Cancel removes it.
type Subscription struct {
	ID     uint64
	Type   Type
	Cancel func()
}

type registration struct {
	id      uint64
	handler Handler
}

// Bus manages event subscriptions and dispatching
type Bus struct {
	handlers map[Type][]registration
	nextID   uint64
	mu       sync.RWMutex
}

// NewEventBus creates a new event bus
func NewEventBus() *Bus {
	return &Bus{
		handlers: make(map[Type][]registration),
		nextID:   1,
	}
}

// Subscribe registers a handler for a specific event type
func (b *Bus) Subscribe(eventType Type, handler Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.handlers[eventType] = append(b.handlers[eventType], registration{id: id, handler: handler})

	return &Subscription{
		ID:     id,
		Type:   eventType,
		Cancel: func() { b.unsubscribe(eventType, id) },
	}
}

func (b *Bus) unsubscribe(eventType Type, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	handlers := b.handlers[eventType]
	for i, r := range handlers {
		if r.id == id {
			b.handlers[eventType] = append(handlers[:i:i], handlers[i+1:]...)
			break
		}
	}
	if len(b.handlers[eventType]) == 0 {
		delete(b.handlers, eventType)
	}
}

// Publish sends an event to all subscribed handlers
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	handlers := append([]registration(nil), b.handlers[event.GetType()]...)
	b.mu.RUnlock()

	for _, r := range handlers {
		r.handler(event)
	}
}

// TurnEvent marks a point in a turn
type TurnEvent struct {
	BaseEvent
	Turn uint64
	Tick int
}

// NewTurnEvent creates a new turn event
func NewTurnEvent(eventType Type, source interface{}, turn uint64, tick int) *TurnEvent {
	return &TurnEvent{
		BaseEvent: BaseEvent{EventType: eventType, Source: source},
		Turn:      turn,
		Tick:      tick,
	}
}

// ShipEvent contains information about ship-related events
type ShipEvent struct {
	BaseEvent
	ShipID entity.ShipID
	Ship   *entity.Ship
}

// NewShipEvent creates a new ship event. ship may be nil for removals.
func NewShipEvent(eventType Type, source interface{}, id entity.ShipID, ship *entity.Ship) *ShipEvent {
	return &ShipEvent{
		BaseEvent: BaseEvent{EventType: eventType, Source: source},
		ShipID:    id,
		Ship:      ship,
	}
}

// PlayerEvent describes a client joining or leaving the battle
type PlayerEvent struct {
	BaseEvent
	ClientID entity.ClientID
	ShipID   entity.ShipID
	Name     string
}

// NewPlayerEvent creates a new player event
func NewPlayerEvent(eventType Type, source interface{}, client entity.ClientID, ship entity.ShipID, name string) *PlayerEvent {
	return &PlayerEvent{
		BaseEvent: BaseEvent{EventType: eventType, Source: source},
		ClientID:  client,
		ShipID:    ship,
		Name:      name,
	}
}
