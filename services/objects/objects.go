// Package objects is the process-wide object registry: named data objects
// whose current value is published retained on the bus under
// objects/<name>. Drivers register their objects while they initialise, so
// the registry must be up first.
package objects

import (
	"log/slog"
	"sort"
	"sync"

	"boardcode-go/bus"
	"boardcode-go/errcode"
	"boardcode-go/x/logx"
)

const op = "objects"

// Topic returns the bus topic of an object.
func Topic(name string) bus.Topic { return bus.T("objects", name) }

// Manager owns the registered objects.
type Manager struct {
	b   *bus.Bus
	log *slog.Logger

	mu    sync.RWMutex
	conn  *bus.Connection
	objs  map[string]any
	inits int
}

func New(b *bus.Bus, l *slog.Logger) *Manager {
	return &Manager{b: b, log: logx.For(l, logx.Registry).With("registry", op)}
}

// Initialize connects to the bus. It stands for event dispatch bring-up as
// well: nothing can be published before it.
func (m *Manager) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn != nil {
		return nil
	}
	m.conn = m.b.NewConnection(op)
	m.objs = map[string]any{}
	m.inits++
	m.log.Debug("initialised")
	return nil
}

// Ready reports whether Initialize ran.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.conn != nil
}

// Inits counts Initialize calls that did work.
func (m *Manager) Inits() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.inits
}

// Register adds an object with its initial value.
func (m *Manager) Register(name string, initial any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		return errcode.New(errcode.NotInitialized, op, "register "+name)
	}
	if _, dup := m.objs[name]; dup {
		return errcode.New(errcode.ConfigConflict, op, name+" already registered")
	}
	m.objs[name] = initial
	m.conn.Publish(m.conn.NewMessage(Topic(name), initial, true))
	return nil
}

// Set updates an object and publishes the new value.
func (m *Manager) Set(name string, v any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		return errcode.New(errcode.NotInitialized, op, "set "+name)
	}
	if _, ok := m.objs[name]; !ok {
		return errcode.New(errcode.NotPresent, op, name)
	}
	m.objs[name] = v
	m.conn.Publish(m.conn.NewMessage(Topic(name), v, true))
	return nil
}

// Get returns the current value of an object.
func (m *Manager) Get(name string) (any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.conn == nil {
		return nil, errcode.New(errcode.NotInitialized, op, "get "+name)
	}
	v, ok := m.objs[name]
	if !ok {
		return nil, errcode.New(errcode.NotPresent, op, name)
	}
	return v, nil
}

// Subscribe follows one object, or every object when name is empty. The
// current value arrives first.
func (m *Manager) Subscribe(name string) (*bus.Subscription, error) {
	m.mu.RLock()
	conn := m.conn
	m.mu.RUnlock()
	if conn == nil {
		return nil, errcode.New(errcode.NotInitialized, op, "subscribe")
	}
	t := Topic(name)
	if name == "" {
		t = bus.T("objects", "#")
	}
	return conn.Subscribe(t), nil
}

// Names lists registered objects, sorted.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.objs))
	for n := range m.objs {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Reset clears retained values and disconnects.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		return
	}
	for n := range m.objs {
		m.conn.Publish(m.conn.NewMessage(Topic(n), nil, true))
	}
	m.conn.Disconnect()
	m.conn = nil
	m.objs = nil
}
