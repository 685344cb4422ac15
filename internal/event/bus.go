package event

import (
	"fmt"
	"runtime/debug"
	"slices"
	"sync"

	"github.com/gobwas/glob"
	"github.com/google/uuid"

	"github.com/mgx3d/tkutil/internal/logging"
)

// Handler receives published events. It runs on the publishing goroutine,
// which is usually inside an object's notification.
type Handler func(Event)

// subscription is one handler, bound either to an exact event type or to a
// glob over event types ("registry.*").
type subscription struct {
	id      string
	exact   string
	pattern glob.Glob
	handler Handler
}

func (s subscription) matches(eventType string) bool {
	if s.pattern != nil {
		return s.pattern.Match(eventType)
	}
	return s.exact == eventType
}

// Bus is a synchronous pub-sub bus mirroring object lifecycles. A nil *Bus
// is valid and drops every event, so publishers never check for one.
type Bus struct {
	mu       sync.RWMutex
	exact    map[string][]subscription
	patterns []subscription
	logger   *logging.Logger
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		exact:  make(map[string][]subscription),
		logger: logging.NopLogger(),
	}
}

// SetLogger sets the logger used to report handler panics.
func (b *Bus) SetLogger(logger *logging.Logger) {
	if logger == nil {
		logger = logging.NopLogger()
	}
	b.mu.Lock()
	b.logger = logger.WithComponent("event")
	b.mu.Unlock()
}

// Subscribe registers handler for one event type and returns the
// subscription ID.
func (b *Bus) Subscribe(eventType string, handler Handler) string {
	sub := subscription{id: uuid.NewString(), exact: eventType, handler: handler}

	b.mu.Lock()
	b.exact[eventType] = append(b.exact[eventType], sub)
	b.mu.Unlock()
	return sub.id
}

// SubscribePattern registers handler for every event type matching the glob
// pattern, e.g. "object.*" or "registry.{registered,unregistered}".
func (b *Bus) SubscribePattern(pattern string, handler Handler) (string, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return "", fmt.Errorf("invalid event pattern %q: %w", pattern, err)
	}
	sub := subscription{id: uuid.NewString(), pattern: g, handler: handler}

	b.mu.Lock()
	b.patterns = append(b.patterns, sub)
	b.mu.Unlock()
	return sub.id, nil
}

// SubscribeAll registers handler for every event type.
func (b *Bus) SubscribeAll(handler Handler) string {
	id, _ := b.SubscribePattern(wildcardType, handler)
	return id
}

// Unsubscribe removes a subscription and reports whether it existed.
func (b *Bus) Unsubscribe(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	byID := func(s subscription) bool { return s.id == id }
	if i := slices.IndexFunc(b.patterns, byID); i >= 0 {
		b.patterns = slices.Delete(b.patterns, i, i+1)
		return true
	}
	for eventType, subs := range b.exact {
		if i := slices.IndexFunc(subs, byID); i >= 0 {
			subs = slices.Delete(subs, i, i+1)
			if len(subs) == 0 {
				delete(b.exact, eventType)
			} else {
				b.exact[eventType] = subs
			}
			return true
		}
	}
	return false
}

// Publish delivers e to the exact subscribers of its type, then to the
// matching pattern subscribers, each group in registration order. Handlers
// run outside the bus lock and may subscribe or unsubscribe; a handler that
// panics is logged and skipped.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}

	eventType := e.EventType()
	b.mu.RLock()
	targets := slices.Clone(b.exact[eventType])
	for _, sub := range b.patterns {
		if sub.matches(eventType) {
			targets = append(targets, sub)
		}
	}
	logger := b.logger
	b.mu.RUnlock()

	for _, sub := range targets {
		deliver(logger, sub, e)
	}
}

func deliver(logger *logging.Logger, sub subscription, e Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("event handler panicked",
				"event_type", e.EventType(),
				"subscription", sub.id,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	sub.handler(e)
}

// Clear removes every subscription.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.exact)
	b.patterns = nil
}

// SubscriptionCount returns the number of active subscriptions.
func (b *Bus) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := len(b.patterns)
	for _, subs := range b.exact {
		n += len(subs)
	}
	return n
}
