package ezdb

import "slices"

// Event identifies a notification kind.
type Event uint8

// Notification kinds.
const (
	// EventChange fires when a persisted instance is modified locally.
	EventChange Event = iota
	// EventInsert fires when an instance has been inserted.
	EventInsert
	// EventUpdate fires when an instance has been written to the backend.
	EventUpdate
	// EventDelete fires when an instance has been deleted.
	EventDelete
	numEvents
)

// String implements the fmt.Stringer interface.
func (ev Event) String() string {
	switch ev {
	case EventChange:
		return "change"
	case EventInsert:
		return "insert"
	case EventUpdate:
		return "update"
	case EventDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Callback receives the notified instance. changed carries the written
// values for EventChange and is nil for the other events.
type Callback func(e *Entity, changed Values)

// Subscription is the handle returned when a callback is registered. It is
// the only way to unregister the callback again.
type Subscription struct {
	event Event
	fn    Callback
}

// Event returns the event the subscription listens to.
func (s *Subscription) Event() Event { return s.event }

// hooks holds ordered callback lists, one per event. It is not safe for
// concurrent use; owners guard it with their own mutex.
type hooks struct {
	lists [numEvents][]*Subscription
}

func (h *hooks) add(ev Event, fn Callback) *Subscription {
	sub := &Subscription{event: ev, fn: fn}
	h.lists[ev] = append(h.lists[ev], sub)
	return sub
}

func (h *hooks) remove(sub *Subscription) bool {
	if sub == nil || sub.event >= numEvents {
		return false
	}
	i := slices.Index(h.lists[sub.event], sub)
	if i < 0 {
		return false
	}
	h.lists[sub.event] = slices.Delete(h.lists[sub.event], i, i+1)
	return true
}

func (h *hooks) list(ev Event) []*Subscription {
	return slices.Clone(h.lists[ev])
}

func validEvent(ev Event) bool { return ev < numEvents }

// On registers fn for ev on this instance only.
func (e *Entity) On(ev Event, fn Callback) *Subscription {
	if !validEvent(ev) || fn == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hooks.add(ev, fn)
}

// Off unregisters a subscription created by e.On.
func (e *Entity) Off(sub *Subscription) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.hooks.remove(sub) {
		return NewNotFoundError("subscription")
	}
	return nil
}

// On registers fn for ev on every instance of the type.
func (t *EntityType) On(ev Event, fn Callback) *Subscription {
	if !validEvent(ev) || fn == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hooks.add(ev, fn)
}

// Off unregisters a subscription created by t.On.
func (t *EntityType) Off(sub *Subscription) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.hooks.remove(sub) {
		return NewNotFoundError("subscription")
	}
	return nil
}

// On registers fn for ev on every instance of every type in the registry.
func (r *Registry) On(ev Event, fn Callback) *Subscription {
	if !validEvent(ev) || fn == nil {
		return nil
	}
	r.hookMu.Lock()
	defer r.hookMu.Unlock()
	return r.hooks.add(ev, fn)
}

// Off unregisters a subscription created by r.On.
func (r *Registry) Off(sub *Subscription) error {
	r.hookMu.Lock()
	defer r.hookMu.Unlock()
	if !r.hooks.remove(sub) {
		return NewNotFoundError("subscription")
	}
	return nil
}

// notify invokes the instance, type and registry callbacks for ev, in
// that order. It must be called without holding any entity or type lock.
func (e *Entity) notify(ev Event, changed Values) {
	e.mu.RLock()
	subs := e.hooks.list(ev)
	e.mu.RUnlock()

	t := e.typ
	t.mu.Lock()
	subs = append(subs, t.hooks.list(ev)...)
	t.mu.Unlock()

	if r := t.reg; r != nil {
		r.hookMu.Lock()
		subs = append(subs, r.hooks.list(ev)...)
		r.hookMu.Unlock()
	}
	for _, s := range subs {
		s.fn(e, changed)
	}
}
