package sim

import (
	"sync"
	"time"

	"periph.io/x/conn/v3/physic"

	"boardcode-go/board/periph"
	"boardcode-go/drivers/adc"
	"boardcode-go/drivers/servo"
	"boardcode-go/drivers/spektrum"
	"boardcode-go/drivers/timcap"
	"boardcode-go/errcode"
)

type converter struct {
	cfg    periph.ADCConfig
	dmaIRQ func()

	mu      sync.Mutex
	buf     []uint16
	next    int
	pending bool
	half    int
	running bool
}

func (c *converter) Start(buf []uint16) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf, c.running, c.next = buf, true, 0
	return nil
}

func (c *converter) Half() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.pending {
		return 0, false
	}
	c.pending = false
	return c.half, true
}

func (c *converter) Stop() error {
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
	return nil
}

func (b *Board) OpenADC(cfg periph.ADCConfig, dmaIRQ func()) (adc.Converter, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.fault(cfg.Name); err != nil {
		return nil, err
	}
	c := &converter{cfg: cfg, dmaIRQ: dmaIRQ}
	b.adcs[cfg.Name] = c
	return c, nil
}

// Convert completes one half buffer of converter name with every input
// reading values[input], then raises the DMA interrupt.
func (b *Board) Convert(name string, values ...uint16) error {
	b.mu.Lock()
	c, ok := b.adcs[name]
	b.mu.Unlock()
	if !ok {
		return errcode.New(errcode.NotPresent, op, name)
	}
	c.mu.Lock()
	if !c.running || len(values) != len(c.cfg.Inputs) {
		c.mu.Unlock()
		return errcode.New(errcode.InvalidParams, op, name+": inputs")
	}
	half := len(c.buf) / 2
	seg := c.buf[c.next*half : (c.next+1)*half]
	for i := range seg {
		seg[i] = values[i%len(values)]
	}
	c.half, c.pending = c.next, true
	c.next ^= 1
	c.mu.Unlock()
	if c.dmaIRQ != nil {
		c.dmaIRQ()
	}
	return nil
}

type outputs struct {
	mu  sync.Mutex
	cmp map[int]uint16
}

func (o *outputs) SetCompare(ch int, ticks uint16) error {
	o.mu.Lock()
	o.cmp[ch] = ticks
	o.mu.Unlock()
	return nil
}

func (o *outputs) Close() error { return nil }

func (b *Board) OpenServo(cfg periph.ServoConfig) (servo.Outputs, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.fault(cfg.Name); err != nil {
		return nil, err
	}
	o := &outputs{cmp: map[int]uint16{}}
	b.servos[cfg.Name] = o
	return o, nil
}

// Compare returns the compare register of output ch of bank name.
func (b *Board) Compare(name string, ch int) (uint16, bool) {
	b.mu.Lock()
	o, ok := b.servos[name]
	b.mu.Unlock()
	if !ok {
		return 0, false
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	v, ok := o.cmp[ch]
	return v, ok
}

type capture struct {
	channels []periph.TimerPin
	tick     physic.Frequency
	irq      func(periph.Timer)

	mu      sync.Mutex
	pending map[periph.Timer][]timcap.Edge
	count   map[periph.TimerChannel]uint16
}

func (c *capture) Pending(t periph.Timer, dst []timcap.Edge) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := copy(dst, c.pending[t])
	c.pending[t] = c.pending[t][n:]
	return n
}

func (c *capture) Close() error { return nil }

func (b *Board) OpenCapture(name string, channels []periph.TimerPin, tick physic.Frequency, irq func(periph.Timer)) (timcap.Source, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.fault(name); err != nil {
		return nil, err
	}
	c := &capture{
		channels: channels, tick: tick, irq: irq,
		pending: map[periph.Timer][]timcap.Edge{},
		count:   map[periph.TimerChannel]uint16{},
	}
	b.captures[name] = c
	return c, nil
}

// Pulse latches a high pulse of width w on capture channel ch of source
// name, preceded by gap low time, and raises the timer interrupt.
func (b *Board) Pulse(name string, ch int, gap, w time.Duration) error {
	b.mu.Lock()
	c, ok := b.captures[name]
	b.mu.Unlock()
	if !ok {
		return errcode.New(errcode.NotPresent, op, name)
	}
	c.mu.Lock()
	if ch < 0 || ch >= len(c.channels) {
		c.mu.Unlock()
		return errcode.New(errcode.InvalidParams, op, name+": channel")
	}
	tc := c.channels[ch].TimerChannel
	ticks := func(d time.Duration) uint16 { return uint16(d / c.tick.Period()) }
	rise := c.count[tc] + ticks(gap)
	fall := rise + ticks(w)
	c.count[tc] = fall
	c.pending[tc.Timer] = append(c.pending[tc.Timer],
		timcap.Edge{Channel: tc, Count: rise, Rising: true},
		timcap.Edge{Channel: tc, Count: fall})
	c.mu.Unlock()
	if c.irq != nil {
		c.irq(tc.Timer)
	}
	return nil
}

// PPMFrame latches a combined PPM frame on the first channel of source
// name: one rising edge per channel interval, then a sync gap.
func (b *Board) PPMFrame(name string, syncGap time.Duration, channels ...time.Duration) error {
	b.mu.Lock()
	c, ok := b.captures[name]
	b.mu.Unlock()
	if !ok {
		return errcode.New(errcode.NotPresent, op, name)
	}
	c.mu.Lock()
	tc := c.channels[0].TimerChannel
	ticks := func(d time.Duration) uint16 { return uint16(d / c.tick.Period()) }
	at := c.count[tc]
	intervals := append(append([]time.Duration(nil), channels...), syncGap)
	for _, iv := range intervals {
		c.pending[tc.Timer] = append(c.pending[tc.Timer], timcap.Edge{Channel: tc, Count: at, Rising: true})
		at += ticks(iv)
	}
	c.pending[tc.Timer] = append(c.pending[tc.Timer], timcap.Edge{Channel: tc, Count: at, Rising: true})
	c.count[tc] = at
	c.mu.Unlock()
	if c.irq != nil {
		c.irq(tc.Timer)
	}
	return nil
}

type frameTimer struct {
	tick func()
}

func (f *frameTimer) Close() error { return nil }

func (b *Board) OpenFrameTimer(cfg periph.SpektrumConfig, tick func()) (spektrum.FrameTimer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.fault(cfg.Name); err != nil {
		return nil, err
	}
	f := &frameTimer{tick: tick}
	b.frames[cfg.Name] = f
	return f, nil
}

// FrameTick fires the frame timer of receiver name once.
func (b *Board) FrameTick(name string) error {
	b.mu.Lock()
	f, ok := b.frames[name]
	b.mu.Unlock()
	if !ok {
		return errcode.New(errcode.NotPresent, op, name)
	}
	if f.tick != nil {
		f.tick()
	}
	return nil
}
