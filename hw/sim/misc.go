package sim

import (
	"sync"
	"time"

	pgpio "periph.io/x/conn/v3/gpio"

	"boardcode-go/board/periph"
	"boardcode-go/drivers/gpio"
)

type lines struct {
	mu    sync.Mutex
	level map[int]pgpio.Level
}

func (l *lines) Out(pin int, v pgpio.Level) error {
	l.mu.Lock()
	l.level[pin] = v
	l.mu.Unlock()
	return nil
}

func (l *lines) Close() error { return nil }

func (b *Board) OpenGPIO(cfg periph.GPIOConfig) (gpio.Lines, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.fault(cfg.Name); err != nil {
		return nil, err
	}
	l := &lines{level: map[int]pgpio.Level{}}
	b.lines[cfg.Name] = l
	return l, nil
}

// Level returns the driven level of line pin of group name.
func (b *Board) Level(name string, pin int) (pgpio.Level, bool) {
	b.mu.Lock()
	l, ok := b.lines[name]
	b.mu.Unlock()
	if !ok {
		return pgpio.Low, false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.level[pin]
	return v, ok
}

// WatchdogName is the fault injection name of the watchdog.
const WatchdogName = "watchdog"

type watchdog struct {
	enabled bool
	timeout time.Duration
	kicks   int
}

func (b *Board) EnableWatchdog(timeout time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.fault(WatchdogName); err != nil {
		return err
	}
	b.wdg = watchdog{enabled: true, timeout: timeout}
	return nil
}

func (b *Board) Kick() {
	b.mu.Lock()
	b.wdg.kicks++
	b.mu.Unlock()
}

// Watchdog reports whether the watchdog runs, its timeout and kick count.
func (b *Board) Watchdog() (enabled bool, timeout time.Duration, kicks int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.wdg.enabled, b.wdg.timeout, b.wdg.kicks
}

// BackupName is the fault injection name of the backup domain.
const BackupName = "backup"

func (b *Board) EnableBackup() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fault(BackupName)
}

func (b *Board) ReadBackup(reg int) uint16 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if reg < 0 || reg >= len(b.backup) {
		return 0
	}
	return b.backup[reg]
}

func (b *Board) WriteBackup(reg int, v uint16) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if reg >= 0 && reg < len(b.backup) {
		b.backup[reg] = v
	}
}
