package connectivity

import "sync"

// Monitor tracks whether the remote backend is reachable and notifies
// subscribers on the offline→online edge. State transitions are fed in by
// the Prober (or tests); the monitor itself never touches the network.
//
// Each subscriber is invoked exactly once per transition: notifications are
// not coalesced across subscribers, and a subscriber is never called twice
// for the same edge.
type Monitor struct {
	mu          sync.Mutex
	online      bool
	nextID      int
	subscribers map[int]func()
}

func NewMonitor() *Monitor {
	return &Monitor{subscribers: map[int]func(){}}
}

// Online reports the last observed connectivity state. The monitor starts
// offline until the first successful probe.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// SetOnline records a connectivity observation. Re-reporting the current
// state is a no-op; only the offline→online edge fires callbacks.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	wasOnline := m.online
	m.online = online

	var callbacks []func()
	if online && !wasOnline {
		callbacks = make([]func(), 0, len(m.subscribers))
		for _, fn := range m.subscribers {
			callbacks = append(callbacks, fn)
		}
	}
	m.mu.Unlock()

	// Callbacks run outside the lock so they can query the monitor or
	// register further subscribers.
	for _, fn := range callbacks {
		fn()
	}
}

// OnReconnect registers a callback for the offline→online edge and returns
// a function that removes the registration.
func (m *Monitor) OnReconnect(fn func()) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subscribers[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subscribers, id)
		m.mu.Unlock()
	}
}
