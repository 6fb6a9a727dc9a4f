// Package coptercontrol is the CopterControl board definition: the
// descriptor set for each feature selection, the device tables and
// registry built from it, the interrupt trampolines, the COM table and the
// bring-up sequence.
//
// A Board is built once per feature selection. Init runs bring-up; Reset
// returns every table, registry and counter to the cold state so Init can
// run again.
package coptercontrol

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"boardcode-go/board/com"
	"boardcode-go/board/devtab"
	"boardcode-go/board/features"
	"boardcode-go/board/irq"
	"boardcode-go/board/periph"
	"boardcode-go/board/seq"
	"boardcode-go/board/validate"
	"boardcode-go/bus"
	"boardcode-go/drivers/adc"
	"boardcode-go/drivers/base"
	"boardcode-go/drivers/gpio"
	"boardcode-go/drivers/i2c"
	"boardcode-go/drivers/iap"
	"boardcode-go/drivers/ppm"
	"boardcode-go/drivers/pwmin"
	"boardcode-go/drivers/servo"
	"boardcode-go/drivers/spektrum"
	"boardcode-go/drivers/spi"
	"boardcode-go/drivers/timcap"
	"boardcode-go/drivers/usart"
	"boardcode-go/drivers/usbhid"
	"boardcode-go/drivers/w25x"
	"boardcode-go/drivers/wdg"
	"boardcode-go/errcode"
	"boardcode-go/services/alarms"
	"boardcode-go/services/objects"
	"boardcode-go/services/taskmon"
	"boardcode-go/x/logx"
	"boardcode-go/x/timex"
)

const op = "coptercontrol"

// Hardware is every backend the board drives plus the vector table.
type Hardware interface {
	irq.Sink
	usart.Backend
	spi.Backend
	i2c.Backend
	adc.Backend
	servo.Backend
	timcap.Backend
	spektrum.Backend
	usbhid.Backend
	gpio.Backend
	wdg.Backend
	iap.Registers
}

// Options tunes a board. Zero values select the defaults.
type Options struct {
	Logger *slog.Logger
	Clock  timex.Clock
	// Bus carries object and alarm updates; a private bus is made when nil.
	Bus *bus.Bus

	TelemetryBaud   uint32
	GPSBaud         uint32
	SpektrumBaud    uint32
	WatchdogTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = &timex.Host{}
	}
	if o.Bus == nil {
		o.Bus = bus.NewBus(16)
	}
	if o.TelemetryBaud == 0 {
		o.TelemetryBaud = TelemetryBaud
	}
	if o.GPSBaud == 0 {
		o.GPSBaud = GPSBaud
	}
	if o.SpektrumBaud == 0 {
		o.SpektrumBaud = SpektrumBaud
	}
	if o.WatchdogTimeout == 0 {
		o.WatchdogTimeout = wdg.DefaultTimeout
	}
	return o
}

// Tables holds the device table of every class. Tables for features that
// are not selected are nil and absent from the registry.
type Tables struct {
	USART    *usart.Table
	SPI      *spi.Table
	ADC      *adc.Table
	Servo    *servo.Table
	GPIO     *gpio.Table
	Flash    *w25x.Table
	Spektrum *spektrum.Table
	PWM      *pwmin.Table
	PPM      *ppm.Table
	USB      *usbhid.Table
	I2C      *i2c.Table
}

// Drivers holds the class drivers. Entries for unselected features are nil.
type Drivers struct {
	USART    *usart.Driver
	SPI      *spi.Driver
	ADC      *adc.Driver
	Servo    *servo.Driver
	GPIO     *gpio.Driver
	Flash    *w25x.Driver
	Spektrum *spektrum.Driver
	PWM      *pwmin.Driver
	PPM      *ppm.Driver
	USB      *usbhid.Driver
	I2C      *i2c.Driver
	Watchdog *wdg.Watchdog
	IAP      *iap.IAP
}

type pendingAlarm struct {
	name   string
	reason string
}

type Board struct {
	flags  features.Flags
	layout features.Layout
	hw     Hardware
	opts   Options
	log    *slog.Logger

	tabs    Tables
	drv     Drivers
	reg     *devtab.Registry
	vectors *irq.Table
	seq     *seq.Sequencer

	objects *objects.Manager
	alarms  *alarms.Manager
	tasks   *taskmon.Monitor

	mu      sync.Mutex
	pending []pendingAlarm
	com     *com.Table
	report  seq.Report
}

// New builds the board for flags on hw. Every resource conflict in the
// resulting definition is reported before anything is opened.
func New(flags features.Flags, hw Hardware, opts Options) (*Board, error) {
	if err := flags.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	b := &Board{
		flags:  flags,
		layout: features.Allocate(flags),
		hw:     hw,
		opts:   opts,
		log:    logx.For(opts.Logger, logx.Board),
	}

	if err := b.buildTables(); err != nil {
		return nil, err
	}
	descs := b.reg.Descriptors()
	if err := validate.Check(validate.STM32F103CB, descs...); err != nil {
		return nil, err
	}
	if err := validate.Priorities(PriorityOrder, descs...); err != nil {
		return nil, err
	}

	b.objects = objects.New(opts.Bus, opts.Logger)
	b.alarms = alarms.New(opts.Bus, opts.Logger)
	b.tasks = taskmon.New(opts.Clock, b.alarms, opts.Logger)

	b.buildDrivers()
	vt, err := b.buildVectors()
	if err != nil {
		return nil, err
	}
	b.vectors = vt

	b.seq = seq.New(seq.Options{
		Logger:   opts.Logger,
		Registry: b.reg,
		Alarm:    b.raise,
		Clock:    opts.Clock,
	})
	if err := b.seq.Add(b.steps()...); err != nil {
		return nil, err
	}
	b.log.Debug("board defined", "features", flags.String(), "layout", b.layout.String(), "vectors", len(vt.Bindings()))
	return b, nil
}

func (b *Board) buildTables() error {
	o := b.opts
	t := &b.tabs

	var uarts []devtab.Def[periph.USARTConfig]
	for _, l := range b.layout.USART {
		switch l {
		case features.Telemetry:
			uarts = append(uarts, devtab.Required(telemetryUSART(o.TelemetryBaud)))
		case features.GPSLink:
			uarts = append(uarts, devtab.Optional(gpsUSART(o.GPSBaud)))
		case features.Aux:
			uarts = append(uarts, devtab.Optional(spektrumUSART(o.SpektrumBaud)))
		}
	}
	t.USART = devtab.MustTable[periph.USARTConfig, usart.State](periph.ClassUSART, uarts...)
	t.SPI = devtab.MustTable[periph.SPIConfig, spi.State](periph.ClassSPI, devtab.Required(flashSPI()))
	t.ADC = devtab.MustTable[periph.ADCConfig, adc.State](periph.ClassADC, devtab.Required(gyroADC()))
	t.Servo = devtab.MustTable[periph.ServoConfig, servo.State](periph.ClassServo, devtab.Required(servoBank()))
	t.GPIO = devtab.MustTable[periph.GPIOConfig, gpio.State](periph.ClassGPIO, devtab.Required(statusLED()))
	t.Flash = devtab.MustTable[periph.FlashConfig, w25x.State](periph.ClassFlash, devtab.Optional(settingsFlash()))

	slots := []devtab.Slots{t.USART, t.SPI, t.ADC, t.Servo, t.GPIO, t.Flash}
	if b.flags.Enabled(features.Spektrum) {
		t.Spektrum = devtab.MustTable[periph.SpektrumConfig, spektrum.State](periph.ClassSpektrum,
			devtab.Optional(spektrumReceiver(o.SpektrumBaud)))
		slots = append(slots, t.Spektrum)
	}
	if b.flags.Enabled(features.PWM) {
		t.PWM = devtab.MustTable[periph.PWMInputConfig, pwmin.State](periph.ClassPWMInput, devtab.Optional(pwmInputs()))
		slots = append(slots, t.PWM)
	}
	if b.flags.Enabled(features.PPM) {
		t.PPM = devtab.MustTable[periph.PPMConfig, ppm.State](periph.ClassPPM, devtab.Optional(ppmInput()))
		slots = append(slots, t.PPM)
	}
	if b.flags.Enabled(features.USBHID) {
		t.USB = devtab.MustTable[periph.USBConfig, usbhid.State](periph.ClassUSB, devtab.Optional(usbPort()))
		slots = append(slots, t.USB)
	}
	// PB10/PB11 carry I2C2 only when no receiver owns USART3.
	if !b.flags.Enabled(features.GPS) && !b.flags.Enabled(features.Spektrum) {
		t.I2C = devtab.MustTable[periph.I2CConfig, i2c.State](periph.ClassI2C, devtab.Optional(mainI2C()))
		slots = append(slots, t.I2C)
	}

	reg, err := devtab.NewRegistry(slots...)
	if err != nil {
		return err
	}
	b.reg = reg
	return nil
}

func (b *Board) buildDrivers() {
	env := base.Env{
		Log:     b.opts.Logger,
		Objects: b.objects,
		Raise:   func(v periph.Vector) { _ = b.Fire(v) },
	}
	t, d := &b.tabs, &b.drv
	d.USART = usart.New(t.USART, b.hw, env, 0)
	d.SPI = spi.New(t.SPI, b.hw, env)
	d.ADC = adc.New(t.ADC, b.hw, env)
	d.Servo = servo.New(t.Servo, b.hw, env)
	d.GPIO = gpio.New(t.GPIO, b.hw, env)
	d.Flash = w25x.NewDriver(t.Flash, d.SPI, env)
	if t.Spektrum != nil {
		aux, _ := b.layout.USARTIndex(features.Aux)
		d.Spektrum = spektrum.New(t.Spektrum, b.hw, env, spektrum.Input{RX: d.USART, USART: aux})
	}
	if t.PWM != nil {
		d.PWM = pwmin.New(t.PWM, b.hw, env)
	}
	if t.PPM != nil {
		d.PPM = ppm.New(t.PPM, b.hw, env)
	}
	if t.USB != nil {
		d.USB = usbhid.New(t.USB, b.hw, env)
	}
	if t.I2C != nil {
		d.I2C = i2c.New(t.I2C, b.hw, env)
	}
	d.Watchdog = wdg.New(b.hw, b.opts.WatchdogTimeout, env)
	d.IAP = iap.New(b.hw)
}

// Trampoline names; members of a shared vector group are matched by name.
const (
	trampGPS         = "gps"
	trampSpektrumRX  = "spektrum-rx"
	trampPPM         = "ppm"
	trampPWMPrefix   = "pwm-"
	trampSpektrumTmr = "spektrum-frame"
)

func (b *Board) buildVectors() (*irq.Table, error) {
	t, d := &b.tabs, &b.drv
	bld := irq.NewBuilder().
		Share(periph.VecUSART3, trampGPS, trampSpektrumRX).
		Share(periph.VecTIM4, trampPWMPrefix+"tim4", trampPPM)

	for i, l := range b.layout.USART {
		e, err := t.USART.Entry(i)
		if err != nil {
			return nil, err
		}
		cfg := e.Desc()
		tr := irq.Trampoline{
			Name:     l.String(),
			Vector:   cfg.IRQ.Vector,
			Device:   devtab.ID(periph.ClassUSART, i),
			Priority: cfg.IRQ.Preempt,
			Handler:  d.USART.IRQHandler,
		}
		if l == features.Aux && d.Spektrum != nil {
			tr.Name = trampSpektrumRX
			tr.Handler = func(index int) {
				d.USART.IRQHandler(index)
				d.Spektrum.RXHandler(0)
			}
		}
		bld.Bind(tr)
	}

	// Both stream vectors of the flash bus land on the one handler.
	spiCfg := flashSPI()
	for _, s := range []*periph.DMAStream{spiCfg.DMA.RX, spiCfg.DMA.TX} {
		v, _ := s.Channel.Vector()
		bld.Bind(irq.Trampoline{
			Name: "flash-" + s.Channel.String(), Vector: v,
			Device: devtab.ID(periph.ClassSPI, 0), Priority: spiCfg.DMA.IRQ.Preempt,
			Handler: d.SPI.IRQHandler,
		})
	}

	adcCfg := gyroADC()
	bld.Bind(irq.Trampoline{
		Name: "adc", Vector: adcCfg.DMA.IRQ.Vector,
		Device: devtab.ID(periph.ClassADC, 0), Priority: adcCfg.DMA.IRQ.Preempt,
		Handler: d.ADC.IRQHandler,
	})

	if d.Spektrum != nil {
		cfg := spektrumReceiver(b.opts.SpektrumBaud)
		bld.Bind(irq.Trampoline{
			Name: trampSpektrumTmr, Vector: cfg.TimerIRQ.Vector,
			Device: devtab.ID(periph.ClassSpektrum, 0), Priority: cfg.TimerIRQ.Preempt,
			Handler: d.Spektrum.IRQHandler,
		})
	}
	if d.PWM != nil {
		cfg := pwmInputs()
		for _, tm := range cfg.Timers() {
			v, ok := tm.Vector()
			if !ok {
				continue
			}
			bld.Bind(irq.Trampoline{
				Name: trampPWMPrefix + lower(tm.String()), Vector: v,
				Device: devtab.ID(periph.ClassPWMInput, 0), Priority: cfg.Preempt,
				Handler: func(index int) { d.PWM.TimerHandler(index, tm) },
			})
		}
	}
	if d.PPM != nil {
		cfg := ppmInput()
		v, _ := cfg.Input.Timer.Vector()
		bld.Bind(irq.Trampoline{
			Name: trampPPM, Vector: v,
			Device: devtab.ID(periph.ClassPPM, 0), Priority: cfg.Preempt,
			Handler: d.PPM.IRQHandler,
		})
	}
	if d.USB != nil {
		cfg := usbPort()
		bld.Bind(irq.Trampoline{
			Name: "usb", Vector: cfg.IRQ.Vector,
			Device: devtab.ID(periph.ClassUSB, 0), Priority: cfg.IRQ.Preempt,
			Handler: d.USB.IRQHandler,
		})
	}
	if d.I2C != nil {
		cfg := mainI2C()
		id := devtab.ID(periph.ClassI2C, 0)
		bld.Bind(irq.Trampoline{Name: "i2c-ev", Vector: cfg.Event.Vector, Device: id, Priority: cfg.Event.Preempt, Handler: d.I2C.IRQHandler})
		bld.Bind(irq.Trampoline{Name: "i2c-er", Vector: cfg.Error.Vector, Device: id, Priority: cfg.Error.Preempt, Handler: d.I2C.ErrorHandler})
	}
	return bld.Build(b.reg)
}

func lower(s string) string {
	out := []byte(s)
	for i, c := range out {
		if c >= 'A' && c <= 'Z' {
			out[i] = c + 'a' - 'A'
		}
	}
	return string(out)
}

// raise forwards a degraded result to the alarm registry. Results from
// before the registries phase are held and flushed when alarms come up.
func (b *Board) raise(source string, err error) {
	reason := ""
	if err != nil {
		reason = err.Error()
	}
	b.mu.Lock()
	if !b.alarms.Ready() {
		b.pending = append(b.pending, pendingAlarm{name: source, reason: reason})
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()
	if err := b.alarms.SetReason(source, alarms.Warning, reason); err != nil {
		b.log.Error("alarm", "source", source, "err", err)
	}
}

// Init runs bring-up. A fatal step halts it with a coded init_fatal error
// and the watchdog is never armed.
func (b *Board) Init(ctx context.Context) (seq.Report, error) {
	rep, err := b.seq.Run(ctx)
	b.mu.Lock()
	b.report = rep
	b.mu.Unlock()
	return rep, err
}

// Fire delivers interrupt v through the trampoline table, as the hardware
// vector would.
func (b *Board) Fire(v periph.Vector) error {
	if b.vectors == nil {
		return errcode.New(errcode.UnknownVector, op, v.String())
	}
	return b.vectors.Dispatch(v)
}

// Reset closes every driver and returns tables, registries and counters to
// the cold state. Hardware that can be power cycled is.
func (b *Board) Reset() error {
	if err := b.seq.Reset(); err != nil {
		return err
	}
	d := &b.drv
	d.USART.Close()
	d.SPI.Close()
	d.ADC.Close()
	d.Servo.Close()
	d.GPIO.Close()
	d.Flash.Close()
	if d.Spektrum != nil {
		d.Spektrum.Close()
	}
	if d.PWM != nil {
		d.PWM.Close()
	}
	if d.PPM != nil {
		d.PPM.Close()
	}
	if d.USB != nil {
		d.USB.Close()
	}
	if d.I2C != nil {
		d.I2C.Close()
	}
	d.Watchdog.Forget()

	b.reg.Reset()
	b.vectors.Reset()
	b.objects.Reset()
	b.alarms.Reset()
	b.tasks.Reset()

	b.mu.Lock()
	b.pending = nil
	b.com = nil
	b.report = seq.Report{}
	b.mu.Unlock()

	if pc, ok := b.hw.(interface{ PowerCycle() }); ok {
		pc.PowerCycle()
	}
	b.log.Debug("board reset")
	return nil
}

// COM returns the logical COM table, built during the COM phase.
func (b *Board) COM() (*com.Table, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.com == nil {
		return nil, errcode.New(errcode.NotInitialized, op, "com table")
	}
	return b.com, nil
}

// Flash returns the probed settings flash, or not_present when the probe
// found nothing usable.
func (b *Board) Flash() (*w25x.Device, error) { return b.drv.Flash.Device(0) }

func (b *Board) Flags() features.Flags      { return b.flags }
func (b *Board) Layout() features.Layout    { return b.layout }
func (b *Board) Registry() *devtab.Registry { return b.reg }
func (b *Board) Vectors() *irq.Table        { return b.vectors }
func (b *Board) Tables() Tables             { return b.tabs }
func (b *Board) Drivers() Drivers           { return b.drv }
func (b *Board) Objects() *objects.Manager  { return b.objects }
func (b *Board) Alarms() *alarms.Manager    { return b.alarms }
func (b *Board) Tasks() *taskmon.Monitor    { return b.tasks }
func (b *Board) Steps() []seq.Step          { return b.seq.Steps() }

// OnStep observes every executed bring-up step.
func (b *Board) OnStep(fn func(seq.Record)) { b.seq.OnStep(fn) }

// Report returns the report of the last Init.
func (b *Board) Report() seq.Report {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.report
}
