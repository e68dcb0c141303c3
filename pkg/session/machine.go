package session

import (
	"sync"
	"time"
)

// Change describes one completed transition.
type Change struct {
	From  State     `json:"from"`
	To    State     `json:"to"`
	Event Event     `json:"event"`
	At    time.Time `json:"at"`
}

// Machine is a concurrency-safe session state holder.
// It starts in Idle and only moves through Transition.
type Machine struct {
	mu     sync.Mutex
	state  State
	now    func() time.Time
	subs   map[int]chan Change
	nextID int
}

// NewMachine creates a machine in Idle. A nil clock uses time.Now.
func NewMachine(now func() time.Time) *Machine {
	if now == nil {
		now = time.Now
	}
	return &Machine{
		state: Idle,
		now:   now,
		subs:  make(map[int]chan Change),
	}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Fire applies event and notifies subscribers.
// On an illegal event the state is left unchanged and the error is returned.
func (m *Machine) Fire(event Event) (Change, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fireLocked(event)
}

// FireIf applies event only when the machine is currently in from.
// It reports false without error when the state differs.
func (m *Machine) FireIf(from State, event Event) (Change, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != from {
		return Change{}, false, nil
	}
	c, err := m.fireLocked(event)
	return c, err == nil, err
}

// Reset forces the machine back to Idle through EventFail.
// It is a no-op when already Idle.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Idle {
		_, _ = m.fireLocked(EventFail)
	}
}

func (m *Machine) fireLocked(event Event) (Change, error) {
	next, err := Transition(m.state, event)
	if err != nil {
		return Change{}, err
	}
	c := Change{From: m.state, To: next, Event: event, At: m.now()}
	m.state = next
	for _, ch := range m.subs {
		// Slow subscribers miss changes; they can always poll State.
		select {
		case ch <- c:
		default:
		}
	}
	return c, nil
}

// Subscribe returns a channel of future changes and a function that ends the
// subscription and closes the channel. buffer below 1 is raised to 1.
func (m *Machine) Subscribe(buffer int) (<-chan Change, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Change, buffer)

	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = ch
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
			close(ch)
		})
	}
}
