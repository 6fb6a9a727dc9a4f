// Package seq is the board bring-up sequencer. Steps are grouped by phase;
// phases run in dependency order and steps within a phase run in the order
// they were added, one at a time. Every step reports OK, Degraded or Fatal
// per device: degraded devices are marked unavailable in the device
// registry and raised as alarms, and the first fatal result halts bring-up
// before the watchdog phase can arm.
package seq

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"boardcode-go/board/devtab"
	"boardcode-go/errcode"
	"boardcode-go/x/logx"
	"boardcode-go/x/timex"
)

const op = "seq"

// Outcome classifies a step result.
type Outcome uint8

const (
	OK Outcome = iota
	Degraded
	Fatal
)

var outcomeNames = [...]string{"ok", "degraded", "fatal"}

func (o Outcome) String() string {
	if int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return "unknown"
}

// Result is the outcome of bringing up one device (or a whole step when
// Device is nil).
type Result struct {
	Outcome Outcome
	Err     error
	Device  *devtab.DeviceID
}

func Ok() Result { return Result{} }

func Degrade(err error) Result { return Result{Outcome: Degraded, Err: err} }

func Halt(err error) Result { return Result{Outcome: Fatal, Err: err} }

// On attaches a device to r.
func (r Result) On(id devtab.DeviceID) Result {
	r.Device = &id
	return r
}

// Step is one bring-up action.
type Step struct {
	Name  string
	Phase Phase
	Run   func(ctx context.Context) []Result
}

// Func adapts an error-returning function: nil is OK, an error coded
// degraded or not_present degrades, anything else is fatal.
func Func(name string, phase Phase, fn func(ctx context.Context) error) Step {
	return Step{Name: name, Phase: phase, Run: func(ctx context.Context) []Result {
		return []Result{Classify(fn(ctx))}
	}}
}

// Classify maps an error onto an outcome. A combined error degrades only
// when every member does.
func Classify(err error) Result {
	if err == nil {
		return Ok()
	}
	for _, e := range multierr.Errors(err) {
		switch errcode.Of(e) {
		case errcode.Degraded, errcode.NotPresent:
		default:
			return Halt(err)
		}
	}
	return Degrade(err)
}

// DriverStep adapts a class driver. Init results map onto slots by index: a
// failed optional slot, or any slot reporting degraded/not_present when
// optional, degrades; a failed mandatory slot is fatal. Successful slots are
// marked ready.
func DriverStep(name string, phase Phase, drv devtab.Driver, tab devtab.Slots) Step {
	return Step{Name: name, Phase: phase, Run: func(ctx context.Context) []Result {
		errs := drv.Init(ctx)
		if len(errs) != tab.Len() {
			return []Result{Halt(errcode.New(errcode.InitFatal, op,
				name+": driver returned wrong number of results"))}
		}
		out := make([]Result, len(errs))
		for i, err := range errs {
			id := devtab.ID(tab.Class(), i)
			switch {
			case err == nil:
				tab.MarkReady(i)
				out[i] = Ok().On(id)
			case tab.Optional(i):
				out[i] = Degrade(err).On(id)
			default:
				out[i] = Halt(err).On(id)
			}
		}
		return out
	}}
}

// Record is the report of one executed step.
type Record struct {
	Step    string
	Phase   Phase
	Results []Result
	Elapsed time.Duration
}

// Outcome is the worst outcome of the step.
func (r Record) Outcome() Outcome {
	o := OK
	for _, res := range r.Results {
		o = max(o, res.Outcome)
	}
	return o
}

// Report summarises a run.
type Report struct {
	Steps    []Record
	Degraded []Result
	Halted   *Record
	Elapsed  time.Duration
}

// Complete reports whether every phase ran.
func (r Report) Complete() bool { return r.Halted == nil }

// AlarmFunc receives degraded devices.
type AlarmFunc func(source string, err error)

// Options configures a Sequencer. Zero values are usable.
type Options struct {
	Logger   *slog.Logger
	Registry *devtab.Registry
	Alarm    AlarmFunc
	Clock    timex.Clock
}

// Sequencer runs bring-up steps.
type Sequencer struct {
	opts  Options
	log   *slog.Logger
	mu    sync.Mutex
	steps [NumPhases][]Step
	obs   []func(Record)
	state atomic.Uint32
}

const (
	stateIdle uint32 = iota
	stateRunning
	stateDone
)

func New(opts Options) *Sequencer {
	if opts.Clock == nil {
		opts.Clock = &timex.Host{}
	}
	return &Sequencer{opts: opts, log: logx.For(opts.Logger, logx.Seq)}
}

// Add appends steps. Steps cannot be added once a run has started.
func (s *Sequencer) Add(steps ...Step) error {
	if s.state.Load() != stateIdle {
		return errcode.New(errcode.Busy, op, "add after run")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range steps {
		if !st.Phase.Valid() || st.Run == nil {
			return errcode.New(errcode.InvalidParams, op, "bad step "+st.Name)
		}
		s.steps[st.Phase] = append(s.steps[st.Phase], st)
	}
	return nil
}

// Steps lists the steps in execution order.
func (s *Sequencer) Steps() []Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Step
	for _, p := range Order() {
		out = append(out, s.steps[p]...)
	}
	return out
}

// OnStep registers an observer called after every step.
func (s *Sequencer) OnStep(fn func(Record)) {
	s.mu.Lock()
	s.obs = append(s.obs, fn)
	s.mu.Unlock()
}

// Run executes every step once. It returns a coded init_fatal error when a
// step halts, and busy when called again without Reset.
func (s *Sequencer) Run(ctx context.Context) (Report, error) {
	if !s.state.CompareAndSwap(stateIdle, stateRunning) {
		return Report{}, errcode.New(errcode.Busy, op, "already run; reset first")
	}
	defer s.state.Store(stateDone)

	s.mu.Lock()
	steps := s.steps
	obs := append([]func(Record){}, s.obs...)
	s.mu.Unlock()

	var rep Report
	start := s.opts.Clock.Since()
	for _, phase := range Order() {
		for _, st := range steps[phase] {
			if err := ctx.Err(); err != nil {
				rec := Record{Step: st.Name, Phase: phase, Results: []Result{Halt(errcode.Wrap(errcode.Timeout, op, err))}}
				rep.Halted = &rec
				return s.finish(rep, start), s.fatal(rec, rec.Results[0])
			}

			s.log.Debug("step", "phase", phase.String(), "step", st.Name)
			t0 := s.opts.Clock.Since()
			rec := Record{Step: st.Name, Phase: phase, Results: st.Run(ctx)}
			rec.Elapsed = s.opts.Clock.Since() - t0
			rep.Steps = append(rep.Steps, rec)

			var halt *Result
			for i := range rec.Results {
				r := &rec.Results[i]
				switch r.Outcome {
				case Degraded:
					s.degrade(st, *r)
					rep.Degraded = append(rep.Degraded, *r)
				case Fatal:
					s.markFailed(*r)
					if halt == nil {
						halt = r
					}
				}
			}
			for _, fn := range obs {
				fn(rec)
			}
			if halt != nil {
				rep.Halted = &rep.Steps[len(rep.Steps)-1]
				return s.finish(rep, start), s.fatal(rec, *halt)
			}
		}
	}
	rep = s.finish(rep, start)
	s.log.Info("bring-up complete", "steps", len(rep.Steps), "degraded", len(rep.Degraded), "elapsed", rep.Elapsed)
	return rep, nil
}

func (s *Sequencer) finish(rep Report, start time.Duration) Report {
	rep.Elapsed = s.opts.Clock.Since() - start
	return rep
}

func (s *Sequencer) degrade(st Step, r Result) {
	source := st.Name
	if r.Device != nil {
		source = r.Device.String()
		if s.opts.Registry != nil {
			if t, ok := s.opts.Registry.Table(r.Device.Class); ok {
				t.MarkDegraded(int(r.Device.Index), r.Err)
				if l := t.Label(int(r.Device.Index)); l != "" {
					source = l
				}
			}
		}
	}
	s.log.Warn("degraded", "phase", st.Phase.String(), "step", st.Name, "device", source, "err", r.Err)
	if s.opts.Alarm != nil {
		s.opts.Alarm(source, r.Err)
	}
}

func (s *Sequencer) markFailed(r Result) {
	if r.Device == nil || s.opts.Registry == nil {
		return
	}
	if t, ok := s.opts.Registry.Table(r.Device.Class); ok {
		t.MarkFailed(int(r.Device.Index), r.Err)
	}
}

func (s *Sequencer) fatal(rec Record, r Result) error {
	cause := r.Err
	if cause == nil {
		cause = errcode.Error
	}
	s.log.Error("bring-up halted", "phase", rec.Phase.String(), "step", rec.Step, "err", cause)
	return errors.Wrapf(errcode.Wrap(errcode.InitFatal, op, cause), "phase %s step %s", rec.Phase, rec.Step)
}

// Reset allows the sequencer to run again. Device state is not touched;
// the owner resets its registry.
func (s *Sequencer) Reset() error {
	if s.state.Load() == stateRunning {
		return errcode.New(errcode.Busy, op, "reset while running")
	}
	s.state.Store(stateIdle)
	return nil
}
