package store

import "sync"

// Notifier is the process-wide change-notification registry. Downstream
// consumers subscribe with a zero-argument callback and are invoked
// synchronously, in registration order, after every successful mutation or
// merge.
type Notifier struct {
	mu   sync.Mutex
	next int
	subs []subscriber
}

type subscriber struct {
	id int
	cb func()
}

func NewNotifier() *Notifier {
	return &Notifier{}
}

// Subscribe registers cb and returns the matching unsubscribe function.
// Unsubscribing twice is a no-op.
func (n *Notifier) Subscribe(cb func()) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.next++
	id := n.next
	n.subs = append(n.subs, subscriber{id: id, cb: cb})
	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		for i, s := range n.subs {
			if s.id == id {
				n.subs = append(n.subs[:i], n.subs[i+1:]...)
				return
			}
		}
	}
}

// Notify invokes all currently registered callbacks in registration order.
// A panicking callback does not prevent the remaining callbacks from
// running.
func (n *Notifier) Notify() {
	n.mu.Lock()
	subs := append([]subscriber(nil), n.subs...)
	n.mu.Unlock()

	for _, s := range subs {
		func() {
			defer func() { _ = recover() }()
			s.cb()
		}()
	}
}
