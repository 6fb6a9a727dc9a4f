// Package spektrum decodes a Spektrum satellite receiver. Bytes arrive on a
// receive-only USART; a frame timer supervises the stream, restarting frame
// sync after a silent tick and declaring the link lost after a run of them.
//
// A frame is 16 bytes: a two byte header followed by seven big-endian words
// carrying a 4-bit channel id and a 10-bit value.
package spektrum

import (
	"context"
	"encoding/binary"
	"log/slog"
	"sync"

	"boardcode-go/board/devtab"
	"boardcode-go/board/periph"
	"boardcode-go/drivers/base"
	"boardcode-go/errcode"
)

const op = "spektrum"

const (
	FrameLen    = 16
	MaxChannels = 12
	// LostTicks silent frame timer ticks declare the link lost.
	LostTicks = 6
)

// Receiver reads buffered bytes of a USART entry; the usart driver is one.
type Receiver interface {
	Read(index int, p []byte) (int, error)
}

// Input ties a table entry to the USART entry carrying its bytes.
type Input struct {
	RX    Receiver
	USART int
}

// FrameTimer is the running supervisor timer.
type FrameTimer interface {
	Close() error
}

type Backend interface {
	OpenFrameTimer(cfg periph.SpektrumConfig, tick func()) (FrameTimer, error)
}

type State struct {
	in    Input
	timer FrameTimer
	buf   [FrameLen]byte
	n     int
	rx    bool
	idle  int

	mu       *sync.Mutex
	channels [MaxChannels]uint16
	seen     uint16
	frames   uint32
	resyncs  uint32
	lost     bool
}

type Table = devtab.Table[periph.SpektrumConfig, State]

type Driver struct {
	tab    *Table
	hw     Backend
	env    base.Env
	log    *slog.Logger
	inputs []Input
}

// New returns the driver; inputs[i] feeds table entry i.
func New(tab *Table, hw Backend, env base.Env, inputs ...Input) *Driver {
	return &Driver{tab: tab, hw: hw, env: env, log: env.Logger(periph.ClassSpektrum), inputs: inputs}
}

func (d *Driver) Class() periph.Class { return periph.ClassSpektrum }

func (d *Driver) Init(ctx context.Context) []error {
	errs := base.Results(d.tab.Len())
	d.tab.Each(func(i int, e *devtab.Entry[periph.SpektrumConfig, State]) {
		if err := ctx.Err(); err != nil {
			errs[i] = err
			return
		}
		cfg := e.Desc()
		if i >= len(d.inputs) || d.inputs[i].RX == nil {
			errs[i] = errcode.New(errcode.InvalidParams, op, cfg.Name+": no receive input")
			return
		}
		if cfg.FrameRate <= 0 {
			errs[i] = errcode.New(errcode.InvalidParams, op, cfg.Name+": frame rate")
			return
		}
		tm, err := d.hw.OpenFrameTimer(cfg, d.env.Notifier(cfg.TimerIRQ.Vector))
		if err != nil {
			errs[i] = errcode.Wrap(errcode.Of(err), op, err)
			return
		}
		e.State = State{in: d.inputs[i], timer: tm, mu: &sync.Mutex{}, lost: true}
		d.log.Debug("frame timer running", "name", cfg.Name, "timer", cfg.FrameTimer.String(), "rate", cfg.FrameRate)
	})
	return errs
}

func objectName(cfg periph.SpektrumConfig) string { return "SpektrumInput/" + cfg.Name }

// RXHandler runs after the USART handler has buffered bytes. It is chained
// onto the USART trampoline.
func (d *Driver) RXHandler(index int) {
	e, err := d.tab.Entry(index)
	if err != nil || e.State.timer == nil {
		return
	}
	st := &e.State
	var b [FrameLen]byte
	for {
		n, err := st.in.RX.Read(st.in.USART, b[:])
		if err != nil || n == 0 {
			return
		}
		st.rx = true
		for _, c := range b[:n] {
			st.buf[st.n] = c
			st.n++
			if st.n == FrameLen {
				decode(st)
				st.n = 0
			}
		}
	}
}

func decode(st *State) {
	st.mu.Lock()
	defer st.mu.Unlock()
	for w := 2; w < FrameLen; w += 2 {
		word := binary.BigEndian.Uint16(st.buf[w:])
		if word == 0xFFFF {
			continue
		}
		id := int(word>>10) & 0x0F
		if id >= MaxChannels {
			continue
		}
		st.channels[id] = word & 0x03FF
		st.seen |= 1 << id
	}
	st.frames++
	st.lost = false
}

// IRQHandler is the frame timer tick.
func (d *Driver) IRQHandler(index int) {
	e, err := d.tab.Entry(index)
	if err != nil || e.State.timer == nil {
		return
	}
	st := &e.State
	if st.rx {
		st.rx, st.idle = false, 0
		return
	}
	st.idle++
	if st.n != 0 {
		st.n = 0
		st.mu.Lock()
		st.resyncs++
		st.mu.Unlock()
	}
	if st.idle >= LostTicks {
		st.mu.Lock()
		st.lost = true
		st.mu.Unlock()
	}
}

// Status is a snapshot of the decoder.
type Status struct {
	Channels []uint16
	Frames   uint32
	Resyncs  uint32
	Lost     bool
}

func (d *Driver) Status(index int) (Status, error) {
	e, ok := d.tab.Ready(index)
	if !ok {
		return Status{}, errcode.New(errcode.NotInitialized, op, devtab.Name(periph.ClassSpektrum, index))
	}
	st := &e.State
	st.mu.Lock()
	defer st.mu.Unlock()
	var ch []uint16
	for i := 0; i < MaxChannels; i++ {
		if st.seen&(1<<i) != 0 {
			ch = append(ch, st.channels[i])
		}
	}
	return Status{Channels: ch, Frames: st.frames, Resyncs: st.resyncs, Lost: st.lost}, nil
}

// Publish pushes the channel values, or nil while the link is lost. The
// receiver comes up before the object registry, so its object is
// registered on first publish.
func (d *Driver) Publish(index int) error {
	s, err := d.Status(index)
	if err != nil {
		return err
	}
	e, _ := d.tab.Entry(index)
	if s.Lost {
		s.Channels = nil
	}
	name := objectName(e.Desc())
	err = d.env.Publish(name, s.Channels)
	if errcode.Is(err, errcode.NotPresent) {
		return d.env.Register(name, s.Channels)
	}
	return err
}

func (d *Driver) Close() {
	d.tab.Each(func(_ int, e *devtab.Entry[periph.SpektrumConfig, State]) {
		if e.State.timer != nil {
			_ = e.State.timer.Close()
			e.State.timer = nil
		}
	})
}
