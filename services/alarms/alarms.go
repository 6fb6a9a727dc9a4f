// Package alarms is the alarm registry. Each alarm has a severity; raised
// alarms are published retained on alarms/<name> and cleared alarms remove
// the retained message.
package alarms

import (
	"log/slog"
	"sort"
	"sync"

	"boardcode-go/bus"
	"boardcode-go/errcode"
	"boardcode-go/x/logx"
)

const op = "alarms"

// Severity of an alarm. Cleared is the zero value.
type Severity uint8

const (
	Cleared Severity = iota
	Warning
	Error
	Critical
)

var sevNames = [...]string{"cleared", "warning", "error", "critical"}

func (s Severity) String() string {
	if int(s) < len(sevNames) {
		return sevNames[s]
	}
	return "unknown"
}

// Alarm is a raised alarm.
type Alarm struct {
	Name     string
	Severity Severity
	Reason   string
}

func Topic(name string) bus.Topic { return bus.T("alarms", name) }

type Manager struct {
	b   *bus.Bus
	log *slog.Logger

	mu     sync.RWMutex
	conn   *bus.Connection
	raised map[string]Alarm
}

func New(b *bus.Bus, l *slog.Logger) *Manager {
	return &Manager{b: b, log: logx.For(l, logx.Registry).With("registry", op)}
}

func (m *Manager) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		m.conn = m.b.NewConnection(op)
		m.raised = map[string]Alarm{}
	}
	return nil
}

func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.conn != nil
}

// Set raises, changes or (with Cleared) clears an alarm.
func (m *Manager) Set(name string, sev Severity) error {
	return m.SetReason(name, sev, "")
}

// SetReason is Set with a human readable cause.
func (m *Manager) SetReason(name string, sev Severity, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		return errcode.New(errcode.NotInitialized, op, "set "+name)
	}
	if sev > Critical {
		return errcode.New(errcode.InvalidParams, op, "severity")
	}
	prev, had := m.raised[name]
	if sev == Cleared {
		if !had {
			return nil
		}
		delete(m.raised, name)
		m.conn.Publish(m.conn.NewMessage(Topic(name), nil, true))
		m.log.Info("alarm cleared", "alarm", name)
		return nil
	}
	a := Alarm{Name: name, Severity: sev, Reason: reason}
	if had && prev == a {
		return nil
	}
	m.raised[name] = a
	m.conn.Publish(m.conn.NewMessage(Topic(name), a, true))
	m.log.Warn("alarm", "alarm", name, "severity", sev.String(), "reason", reason)
	return nil
}

// Get returns the severity of an alarm; unknown alarms are Cleared.
func (m *Manager) Get(name string) (Severity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.conn == nil {
		return Cleared, errcode.New(errcode.NotInitialized, op, "get "+name)
	}
	return m.raised[name].Severity, nil
}

// Raised lists raised alarms sorted by name.
func (m *Manager) Raised() []Alarm {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Alarm, 0, len(m.raised))
	for _, a := range m.raised {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Reset clears every alarm and disconnects.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		return
	}
	for n := range m.raised {
		m.conn.Publish(m.conn.NewMessage(Topic(n), nil, true))
	}
	m.conn.Disconnect()
	m.conn = nil
	m.raised = nil
}
