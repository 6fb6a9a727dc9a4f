package coptercontrol

import (
	"context"

	"go.uber.org/multierr"

	"boardcode-go/board/com"
	"boardcode-go/board/devtab"
	"boardcode-go/board/features"
	"boardcode-go/board/periph"
	"boardcode-go/board/seq"
	"boardcode-go/errcode"
	"boardcode-go/services/alarms"
)

// Step names double as alarm names for results not tied to a slot.
const (
	StepDelay    = "delay"
	StepVectors  = "vectors"
	StepFlash    = "w25x"
	StepObjects  = "objects"
	StepAlarms   = "alarms"
	StepTaskMon  = "taskmon"
	StepCOMTable = "com-table"
	StepIAP      = "iap"
	StepWatchdog = "watchdog"
)

// steps lists bring-up in board order. Within a phase the order is the
// order the board file initialises things.
func (b *Board) steps() []seq.Step {
	t, d := &b.tabs, &b.drv
	steps := []seq.Step{
		seq.Func(StepDelay, seq.PhaseTimeBase, func(context.Context) error {
			b.opts.Clock.Init()
			return nil
		}),
		seq.Func(StepVectors, seq.PhaseTimeBase, func(context.Context) error {
			return b.vectors.Install(b.hw)
		}),

		seq.DriverStep("spi", seq.PhaseBusFabric, d.SPI, t.SPI),
		seq.DriverStep(StepFlash, seq.PhaseBusFabric, d.Flash, t.Flash),

		seq.Func(StepObjects, seq.PhaseRegistries, func(context.Context) error { return b.objects.Initialize() }),
		seq.Func(StepAlarms, seq.PhaseRegistries, b.initAlarms),
		seq.Func(StepTaskMon, seq.PhaseRegistries, func(context.Context) error { return b.tasks.Initialize() }),

		seq.DriverStep("usart", seq.PhaseCOM, d.USART, t.USART),
		seq.Func(StepCOMTable, seq.PhaseCOM, b.buildCOM),

		seq.DriverStep("servo", seq.PhasePeripherals, d.Servo, t.Servo),
		seq.DriverStep("adc", seq.PhasePeripherals, d.ADC, t.ADC),
		seq.DriverStep("gpio", seq.PhasePeripherals, d.GPIO, t.GPIO),
	}
	if d.Spektrum != nil {
		steps = append(steps, seq.DriverStep("spektrum", seq.PhaseOptional, d.Spektrum, t.Spektrum))
	}
	if d.PWM != nil {
		steps = append(steps, seq.DriverStep("pwm", seq.PhasePeripherals, d.PWM, t.PWM))
	}
	if d.PPM != nil {
		steps = append(steps, seq.DriverStep("ppm", seq.PhasePeripherals, d.PPM, t.PPM))
	}
	if d.USB != nil {
		steps = append(steps, seq.DriverStep("usb", seq.PhasePeripherals, d.USB, t.USB))
	}
	if d.I2C != nil {
		steps = append(steps, seq.DriverStep("i2c", seq.PhasePeripherals, d.I2C, t.I2C))
	}
	return append(steps,
		seq.Func(StepIAP, seq.PhasePeripherals, d.IAP.Init),
		seq.Func(StepWatchdog, seq.PhaseWatchdog, d.Watchdog.Enable),
	)
}

func (b *Board) initAlarms(context.Context) error {
	if err := b.alarms.Initialize(); err != nil {
		return err
	}
	b.mu.Lock()
	pending := b.pending
	b.pending = nil
	b.mu.Unlock()

	var errs error
	for _, a := range pending {
		errs = multierr.Append(errs, b.alarms.SetReason(a.name, alarms.Warning, a.reason))
	}
	return errs
}

var comChannels = map[features.Link]com.Channel{
	features.Telemetry: com.Telemetry,
	features.GPSLink:   com.GPS,
	features.USBLink:   com.USB,
	features.Aux:       com.Aux,
}

// buildCOM lays the COM table over the USART and USB tables. The USB
// endpoint comes up later; its port answers not_initialized until then.
func (b *Board) buildCOM(context.Context) error {
	var bindings []com.Binding
	for _, l := range b.layout.COM {
		bd := com.Binding{Channel: comChannels[l]}
		if l == features.USBLink {
			if b.drv.USB == nil {
				continue
			}
			bd.Device, bd.Driver = devtab.ID(periph.ClassUSB, 0), b.drv.USB
		} else {
			i, ok := b.layout.USARTIndex(l)
			if !ok {
				return errcode.New(errcode.ConfigConflict, op, "com link without usart: "+l.String())
			}
			bd.Device, bd.Driver = devtab.ID(periph.ClassUSART, i), b.drv.USART
		}
		bindings = append(bindings, bd)
	}
	t, err := com.Build(b.opts.Logger, bindings...)
	if err != nil {
		return errcode.Wrap(errcode.InitFatal, op, err)
	}
	b.mu.Lock()
	b.com = t
	b.mu.Unlock()
	return nil
}
