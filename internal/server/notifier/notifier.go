// Package notifier broadcasts catalog changes to SSE subscribers.
package notifier

import "sync"

// Event describes one catalog update.
type Event struct {
	// Changed lists the connections whose derived schemas were invalidated.
	Changed []string `json:"changed"`
}

// Notifier fans catalog events out to every subscriber.
type Notifier struct {
	mu        sync.RWMutex
	listeners map[chan Event]struct{}
}

// New creates a new Notifier instance.
func New() *Notifier {
	return &Notifier{
		listeners: make(map[chan Event]struct{}),
	}
}

// Subscribe returns a channel that receives catalog events.
// The caller must call Unsubscribe when done to prevent goroutine leaks.
func (n *Notifier) Subscribe() chan Event {
	ch := make(chan Event, 1)
	n.mu.Lock()
	n.listeners[ch] = struct{}{}
	n.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener channel and closes it.
func (n *Notifier) Unsubscribe(ch chan Event) {
	n.mu.Lock()
	delete(n.listeners, ch)
	n.mu.Unlock()
	close(ch)
}

// Broadcast sends ev to all listeners without blocking. A listener that
// has not drained its previous event gets the two merged.
func (n *Notifier) Broadcast(ev Event) {
	// Exclusive so that a drained slot cannot be refilled by a concurrent
	// broadcast before the merged event is sent.
	n.mu.Lock()
	defer n.mu.Unlock()

	for ch := range n.listeners {
		select {
		case ch <- ev:
		default:
			select {
			case pending := <-ch:
				ch <- merge(pending, ev)
			default:
				ch <- ev
			}
		}
	}
}

// Len returns the number of subscribers.
func (n *Notifier) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.listeners)
}

func merge(a, b Event) Event {
	seen := make(map[string]struct{}, len(a.Changed)+len(b.Changed))
	out := Event{Changed: make([]string, 0, len(a.Changed)+len(b.Changed))}
	for _, name := range append(append([]string{}, a.Changed...), b.Changed...) {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out.Changed = append(out.Changed, name)
	}
	return out
}
