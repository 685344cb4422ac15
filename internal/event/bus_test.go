package event

import (
	"bytes"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/mgx3d/tkutil/internal/logging"
)

// recorder collects the event types a handler saw, tagged with the handler
// name, so delivery order across handlers can be checked.
type recorder struct {
	mu  sync.Mutex
	got []string
}

func (r *recorder) handler(tag string) Handler {
	return func(e Event) {
		r.mu.Lock()
		r.got = append(r.got, tag+":"+e.EventType())
		r.mu.Unlock()
	}
}

func (r *recorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.got...)
}

func lifecycleEvents() []Event {
	return []Event{
		NewObjectRegisteredEvent(1, "geo1", 1),
		NewObjectModifiedEvent(1, 4, 2),
		NewObjectUnavailableEvent(1, 0),
		NewObjectUnregisteredEvent(1, "geo1", 0, true),
		NewObjectDestroyedEvent(1, true),
	}
}

func TestBus_Routing(t *testing.T) {
	tests := []struct {
		name      string
		subscribe func(b *Bus, h Handler) error
		want      []string
	}{
		{
			name: "exact type",
			subscribe: func(b *Bus, h Handler) error {
				b.Subscribe(TypeObjectDestroyed, h)
				return nil
			},
			want: []string{TypeObjectDestroyed},
		},
		{
			name: "object prefix",
			subscribe: func(b *Bus, h Handler) error {
				_, err := b.SubscribePattern("object.*", h)
				return err
			},
			want: []string{TypeObjectModified, TypeObjectUnavailable, TypeObjectDestroyed},
		},
		{
			name: "registry alternatives",
			subscribe: func(b *Bus, h Handler) error {
				_, err := b.SubscribePattern("registry.{registered,unregistered}", h)
				return err
			},
			want: []string{TypeObjectRegistered, TypeObjectUnregistered},
		},
		{
			name: "everything",
			subscribe: func(b *Bus, h Handler) error {
				b.SubscribeAll(h)
				return nil
			},
			want: []string{
				TypeObjectRegistered, TypeObjectModified, TypeObjectUnavailable,
				TypeObjectUnregistered, TypeObjectDestroyed,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := NewBus()
			var got []string
			if err := tt.subscribe(bus, func(e Event) { got = append(got, e.EventType()) }); err != nil {
				t.Fatalf("subscribe error = %v", err)
			}

			for _, e := range lifecycleEvents() {
				bus.Publish(e)
			}

			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("received %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBus_SubscribePatternInvalid(t *testing.T) {
	bus := NewBus()

	id, err := bus.SubscribePattern("object.[", func(Event) {})
	if err == nil {
		t.Fatal("SubscribePattern() should reject a malformed glob")
	}
	if id != "" {
		t.Errorf("SubscribePattern() id = %q, want empty", id)
	}
	if bus.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", bus.SubscriptionCount())
	}
}

func TestBus_DeliveryOrder(t *testing.T) {
	bus := NewBus()
	rec := &recorder{}

	// Pattern subscribers registered first still run after exact ones.
	bus.SubscribeAll(rec.handler("all"))
	bus.Subscribe(TypeObjectDestroyed, rec.handler("first"))
	if _, err := bus.SubscribePattern("object.*", rec.handler("objects")); err != nil {
		t.Fatal(err)
	}
	bus.Subscribe(TypeObjectDestroyed, rec.handler("second"))

	bus.Publish(NewObjectDestroyedEvent(3, false))

	want := []string{
		"first:" + TypeObjectDestroyed,
		"second:" + TypeObjectDestroyed,
		"all:" + TypeObjectDestroyed,
		"objects:" + TypeObjectDestroyed,
	}
	if got := rec.seen(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("delivery order = %v, want %v", got, want)
	}
}

func TestBus_Payload(t *testing.T) {
	bus := NewBus()

	var received Event
	bus.Subscribe(TypeObjectDestroyed, func(e Event) { received = e })
	bus.Publish(NewObjectDestroyedEvent(7, true))

	destroyed, ok := received.(ObjectDestroyedEvent)
	if !ok {
		t.Fatalf("received %T, want ObjectDestroyedEvent", received)
	}
	if destroyed.ObjectID != 7 || !destroyed.SelfDestruct {
		t.Errorf("unexpected payload: %+v", destroyed)
	}
}

func TestBus_PublishOnNilBus(t *testing.T) {
	var bus *Bus

	// Objects built without a bus publish to nil; this must be a no-op.
	bus.Publish(NewObjectModifiedEvent(1, 2, 0))
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()
	rec := &recorder{}

	exact := bus.Subscribe(TypeObjectModified, rec.handler("exact"))
	pattern, err := bus.SubscribePattern("object.*", rec.handler("pattern"))
	if err != nil {
		t.Fatal(err)
	}
	keep := bus.Subscribe(TypeObjectModified, rec.handler("keep"))

	tests := []struct {
		id   string
		want bool
	}{
		{exact, true},
		{pattern, true},
		{exact, false},
		{"no-such-subscription", false},
	}
	for _, tt := range tests {
		if got := bus.Unsubscribe(tt.id); got != tt.want {
			t.Errorf("Unsubscribe(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}

	bus.Publish(NewObjectModifiedEvent(1, 1, 1))
	if got := rec.seen(); len(got) != 1 || got[0] != "keep:"+TypeObjectModified {
		t.Errorf("after unsubscribe received %v, want only keep", got)
	}

	bus.Unsubscribe(keep)
	if bus.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", bus.SubscriptionCount())
	}
}

func TestBus_UniqueIDs(t *testing.T) {
	bus := NewBus()

	ids := make(map[string]bool)
	for range 50 {
		id := bus.Subscribe(TypeObjectModified, func(Event) {})
		if ids[id] {
			t.Fatalf("duplicate subscription ID %q", id)
		}
		ids[id] = true
	}
}

func TestBus_Clear(t *testing.T) {
	bus := NewBus()
	bus.Subscribe(TypeObjectModified, func(Event) { t.Error("cleared handler called") })
	bus.SubscribeAll(func(Event) { t.Error("cleared handler called") })

	bus.Clear()

	if bus.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", bus.SubscriptionCount())
	}
	bus.Publish(NewObjectModifiedEvent(1, 1, 0))
}

func TestBus_HandlersMaySubscribe(t *testing.T) {
	bus := NewBus()

	var once sync.Once
	bus.Subscribe(TypeObjectRegistered, func(Event) {
		once.Do(func() {
			bus.Subscribe(TypeObjectUnregistered, func(Event) {})
		})
	})

	bus.Publish(NewObjectRegisteredEvent(1, "geo1", 1))

	if bus.SubscriptionCount() != 2 {
		t.Errorf("SubscriptionCount() = %d, want 2", bus.SubscriptionCount())
	}
}

func TestBus_HandlerPanicRecovery(t *testing.T) {
	var buf bytes.Buffer
	bus := NewBus()
	bus.SetLogger(logging.NewWriterLogger(&buf, "ERROR"))

	delivered := false
	bus.Subscribe(TypeObjectDestroyed, func(Event) { panic("observer blew up") })
	bus.Subscribe(TypeObjectDestroyed, func(Event) { delivered = true })

	bus.Publish(NewObjectDestroyedEvent(1, false))

	if !delivered {
		t.Error("a panicking handler must not stop delivery to the next one")
	}
	if !strings.Contains(buf.String(), "event handler panicked") {
		t.Errorf("panic was not logged: %s", buf.String())
	}
}

func TestBus_ConcurrentPublish(t *testing.T) {
	bus := NewBus()

	var count atomic.Int64
	bus.SubscribeAll(func(Event) { count.Add(1) })

	const publishers, perPublisher = 8, 100
	var wg sync.WaitGroup
	for range publishers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perPublisher {
				bus.Publish(NewObjectModifiedEvent(uint64(i), 1, 0))
			}
		}()
	}
	wg.Wait()

	if got := count.Load(); got != publishers*perPublisher {
		t.Errorf("handled %d events, want %d", got, publishers*perPublisher)
	}
}

func TestBus_ConcurrentSubscribeUnsubscribe(t *testing.T) {
	bus := NewBus()

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := bus.SubscribePattern("registry.*", func(Event) {})
			if err != nil {
				t.Error(err)
				return
			}
			bus.Publish(NewObjectRegisteredEvent(1, "geo1", 1))
			bus.Unsubscribe(id)
		}()
	}
	wg.Wait()

	if bus.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", bus.SubscriptionCount())
	}
}
