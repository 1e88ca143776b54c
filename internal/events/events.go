package events

import (
	"context"
	"strings"
	"sync"
	"time"

	"sheger-walk-admin/internal/logger"
)

// EventType represents the type of event, "<resource>.<action>".
type EventType string

const (
	EventChallengeCreated   EventType = "challenge.created"
	EventChallengeUpdated   EventType = "challenge.updated"
	EventChallengeDeleted   EventType = "challenge.deleted"
	EventProviderCreated    EventType = "provider.created"
	EventProviderUpdated    EventType = "provider.updated"
	EventProviderDeleted    EventType = "provider.deleted"
	EventRewardCreated      EventType = "reward.created"
	EventRewardUpdated      EventType = "reward.updated"
	EventRewardDeleted      EventType = "reward.deleted"
	EventRewardTypeCreated  EventType = "reward_type.created"
	EventRewardTypeUpdated  EventType = "reward_type.updated"
	EventRewardTypeDeleted  EventType = "reward_type.deleted"
	EventWithdrawalApproved EventType = "withdrawal.approved"
	EventWithdrawalRejected EventType = "withdrawal.rejected"

	// EventMutationFailed is emitted when the backend refuses a mutation.
	EventMutationFailed EventType = "mutation.failed"
)

// Event represents an event in the system.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Data      MutationData
}

// MutationData describes one admin mutation.
type MutationData struct {
	Resource  string
	Action    string
	TargetID  string
	Succeeded bool
	Message   string
}

// Handler is a function that handles events.
type Handler func(ctx context.Context, event Event) error

// Manager manages event handlers and event publishing.
type Manager struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	wildcard []Handler
	enabled  bool
	wg       sync.WaitGroup
}

// NewManager creates a new event manager.
func NewManager(enabled bool) *Manager {
	return &Manager{
		handlers: make(map[EventType][]Handler),
		enabled:  enabled,
	}
}

// Subscribe subscribes a handler to a specific event type.
func (m *Manager) Subscribe(eventType EventType, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.enabled {
		return
	}
	m.handlers[eventType] = append(m.handlers[eventType], handler)
}

// SubscribeAll subscribes a handler to every event.
func (m *Manager) SubscribeAll(handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.enabled {
		return
	}
	m.wildcard = append(m.wildcard, handler)
}

// Publish runs every matching handler in its own goroutine. Handlers get a
// context detached from the request so they outlive it.
func (m *Manager) Publish(ctx context.Context, eventType EventType, data MutationData) {
	m.mu.RLock()
	if !m.enabled {
		m.mu.RUnlock()
		return
	}
	handlers := make([]Handler, 0, len(m.handlers[eventType])+len(m.wildcard))
	handlers = append(handlers, m.handlers[eventType]...)
	handlers = append(handlers, m.wildcard...)
	// Counted under the lock so Shutdown cannot start waiting in between.
	m.wg.Add(len(handlers))
	m.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	event := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}

	hctx := context.WithoutCancel(ctx)
	for _, handler := range handlers {
		go func(h Handler) {
			defer m.wg.Done()
			if err := h(hctx, event); err != nil {
				logger.Error("event handler for %s failed: %v", event.Type, err)
			}
		}(handler)
	}
}

// PublishMutation emits the event for a successful mutation.
func (m *Manager) PublishMutation(ctx context.Context, eventType EventType, targetID, message string) {
	resource, action := split(eventType)
	m.Publish(ctx, eventType, MutationData{
		Resource:  resource,
		Action:    action,
		TargetID:  targetID,
		Succeeded: true,
		Message:   message,
	})
}

// PublishFailure emits EventMutationFailed for an attempted mutation.
func (m *Manager) PublishFailure(ctx context.Context, attempted EventType, targetID, message string) {
	resource, action := split(attempted)
	m.Publish(ctx, EventMutationFailed, MutationData{
		Resource: resource,
		Action:   action,
		TargetID: targetID,
		Message:  message,
	})
}

// Wait blocks until every handler started so far has returned.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Shutdown stops accepting events and waits for running handlers.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.enabled = false
	m.handlers = make(map[EventType][]Handler)
	m.wildcard = nil
	m.mu.Unlock()

	m.wg.Wait()
}

func split(t EventType) (resource, action string) {
	s := string(t)
	if i := strings.LastIndex(s, "."); i >= 0 {
		return s[:i], s[i+1:]
	}
	return s, ""
}
