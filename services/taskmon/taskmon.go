// Package taskmon is the task-monitor registry: tasks declare an expected
// check-in period and touch the monitor while alive. Check raises an alarm
// for every task that missed its window and clears it once the task is
// back.
package taskmon

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"boardcode-go/bus"
	"boardcode-go/errcode"
	"boardcode-go/services/alarms"
	"boardcode-go/x/logx"
	"boardcode-go/x/timex"
)

const op = "taskmon"

var topicConfig = bus.T("config", "taskmon")

// Alarmer is the part of the alarm registry the monitor uses.
type Alarmer interface {
	SetReason(name string, sev alarms.Severity, reason string) error
}

type task struct {
	period time.Duration
	last   time.Duration
	stale  bool
}

type Monitor struct {
	clock  timex.Clock
	alarms Alarmer
	log    *slog.Logger

	mu    sync.Mutex
	ready bool
	tasks map[string]*task
}

func New(clock timex.Clock, a Alarmer, l *slog.Logger) *Monitor {
	return &Monitor{clock: clock, alarms: a, log: logx.For(l, logx.Registry).With("registry", op)}
}

func (m *Monitor) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ready {
		m.ready = true
		m.tasks = map[string]*task{}
	}
	return nil
}

func (m *Monitor) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}

// Add registers a task. The task counts as alive from now.
func (m *Monitor) Add(name string, period time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ready {
		return errcode.New(errcode.NotInitialized, op, "add "+name)
	}
	if period <= 0 {
		return errcode.New(errcode.InvalidParams, op, name+": period")
	}
	if _, dup := m.tasks[name]; dup {
		return errcode.New(errcode.ConfigConflict, op, name+" already monitored")
	}
	m.tasks[name] = &task{period: period, last: m.clock.Since()}
	return nil
}

// Touch records a check-in.
func (m *Monitor) Touch(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ready {
		return errcode.New(errcode.NotInitialized, op, "touch "+name)
	}
	t, ok := m.tasks[name]
	if !ok {
		return errcode.New(errcode.NotPresent, op, name)
	}
	t.last = m.clock.Since()
	return nil
}

// Tasks lists monitored tasks, sorted.
func (m *Monitor) Tasks() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.tasks))
	for n := range m.tasks {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Check returns the tasks that missed their period, raising an alarm on
// each newly stale task and clearing it for recovered ones.
func (m *Monitor) Check() []string {
	now := m.clock.Since()
	type change struct {
		name  string
		stale bool
	}
	var (
		stale   []string
		changes []change
	)
	m.mu.Lock()
	for n, t := range m.tasks {
		s := now-t.last > t.period
		if s {
			stale = append(stale, n)
		}
		if s != t.stale {
			t.stale = s
			changes = append(changes, change{n, s})
		}
	}
	m.mu.Unlock()

	for _, c := range changes {
		sev, reason := alarms.Cleared, ""
		if c.stale {
			sev, reason = alarms.Warning, "missed check-in"
			m.log.Warn("task stale", "task", c.name)
		}
		if m.alarms != nil {
			_ = m.alarms.SetReason("task/"+c.name, sev, reason)
		}
	}
	sort.Strings(stale)
	return stale
}

// Run checks on every tick until ctx ends. A map payload with "interval"
// (seconds) on config/taskmon changes the tick.
func (m *Monitor) Run(ctx context.Context, conn *bus.Connection, every time.Duration) {
	cfgSub := conn.Subscribe(topicConfig)
	defer conn.Unsubscribe(cfgSub)

	tick := time.NewTicker(every)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Debug("stopping")
			return
		case <-tick.C:
			m.Check()
		case msg := <-cfgSub.Channel():
			if msg == nil {
				continue
			}
			if p, ok := msg.Payload.(map[string]any); ok {
				if iv, ok := p["interval"].(float64); ok && iv > 0 {
					tick.Reset(time.Duration(iv * float64(time.Second)))
					m.log.Info("interval changed", "seconds", iv)
				}
			}
		}
	}
}

// Start runs the monitor loop in its own goroutine.
func (m *Monitor) Start(ctx context.Context, conn *bus.Connection, every time.Duration) error {
	if !m.Ready() {
		return errcode.New(errcode.NotInitialized, op, "start")
	}
	go m.Run(ctx, conn, every)
	return nil
}

func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ready = false
	m.tasks = nil
}
