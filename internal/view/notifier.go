package view

import "sync"

// Notifier fans out "state changed" signals. Signals coalesce: a slow
// listener sees at most one pending signal.
type Notifier struct {
	mu   sync.Mutex
	next int
	subs map[int]chan struct{}
}

// NewNotifier creates a notifier without listeners.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[int]chan struct{})}
}

// Subscribe registers a listener. The returned func removes it.
func (n *Notifier) Subscribe() (<-chan struct{}, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := n.next
	n.next++
	ch := make(chan struct{}, 1)
	n.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			delete(n.subs, id)
			close(ch)
		})
	}
}

// Notify signals every listener without blocking. A nil Notifier is a no-op.
func (n *Notifier) Notify() {
	if n == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
