//go:build !tinygo

// Command boardsim brings the CopterControl board up on simulated hardware
// and prints what happened: the step report, the device slots, the vector
// table, the COM table and any raised alarms.
//
//	boardsim -features "gps -pwm" -absent gps -fire USART3,TIM6
//	boardsim -telemetry-port /dev/ttyUSB0
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"go.bug.st/serial"

	"boardcode-go/board/features"
	"boardcode-go/board/periph"
	"boardcode-go/boards/coptercontrol"
	"boardcode-go/drivers/usart"
	"boardcode-go/hw/sim"
	"boardcode-go/x/logx"
)

var (
	featureList   = flag.String("features", "", "feature edits applied to the default set, e.g. \"gps -pwm\"")
	telemetryPort = flag.String("telemetry-port", "", "host serial device carrying the telemetry USART")
	listPorts     = flag.Bool("list-ports", false, "list host serial devices and exit")
	absent        = flag.String("absent", "", "comma separated devices that do not answer")
	failing       = flag.String("fail", "", "comma separated devices that fail to open")
	noFlash       = flag.Bool("no-flash", false, "remove the settings flash")
	unplugged     = flag.Bool("unplugged", false, "leave the USB cable out")
	fire          = flag.String("fire", "", "comma separated vectors to raise after bring-up")
	timeout       = flag.Duration("timeout", 5*time.Second, "bring-up deadline")
	verbose       = flag.Bool("v", false, "debug logging")
)

// hostBoard routes USARTs named in the port map to host devices and
// everything else to the simulator.
type hostBoard struct {
	*sim.Board
	ports *usart.Host
}

func (h hostBoard) OpenUSART(cfg periph.USARTConfig, rxReady func()) (usart.Port, error) {
	return h.ports.OpenUSART(cfg, rxReady)
}

func split(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func main() {
	flag.Parse()
	if *verbose {
		logx.SetLevel(slog.LevelDebug)
	}
	if *listPorts {
		ports, err := serial.GetPortsList()
		if err != nil {
			fmt.Fprintln(os.Stderr, "list ports:", err)
			os.Exit(1)
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}
	if err := run(os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "boardsim:", err)
		os.Exit(1)
	}
}

func run(w io.Writer) error {
	flags, err := features.Parse(*featureList)
	if err != nil {
		return err
	}

	simb := sim.New()
	simb.Absent(split(*absent)...)
	simb.Fail(split(*failing)...)
	if *noFlash {
		simb.RemoveFlash()
	}
	simb.SetCable(!*unplugged)

	var hw coptercontrol.Hardware = simb
	if *telemetryPort != "" {
		hw = hostBoard{Board: simb, ports: &usart.Host{
			Ports:    map[string]string{coptercontrol.NameTelemetry: *telemetryPort},
			Fallback: simb,
		}}
	}

	b, err := coptercontrol.New(flags, hw, coptercontrol.Options{Logger: logx.Default()})
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "features: %s\nlayout:   %s\n\n", flags, b.Layout())

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	rep, initErr := b.Init(ctx)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PHASE\tSTEP\tOUTCOME\tELAPSED")
	for _, r := range rep.Steps {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Phase, r.Step, r.Outcome(), r.Elapsed)
	}
	tw.Flush()

	for _, v := range split(*fire) {
		vec, ok := periph.ParseVector(v)
		if !ok {
			fmt.Fprintf(w, "fire %s: unknown vector\n", v)
			continue
		}
		if err := b.Fire(vec); err != nil {
			fmt.Fprintf(w, "fire %s: %v\n", vec, err)
		}
	}

	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DEVICE\tLABEL\tSTATUS\tOPTIONAL\tERROR")
	for _, s := range b.Registry().Snapshot() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n", s.ID, s.Label, s.Status, s.Optional, s.Err)
	}
	tw.Flush()

	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VECTOR\tTRAMPOLINE\tDEVICE\tPRIORITY\tFIRED")
	for _, tr := range b.Vectors().Bindings() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", tr.Vector, tr.Name, tr.Device, tr.Priority, b.Vectors().Fired(tr.Vector))
	}
	tw.Flush()
	fmt.Fprintf(w, "spurious interrupts: %d\n", b.Vectors().Spurious())

	if ct, err := b.COM(); err == nil {
		fmt.Fprintln(w)
		for _, p := range ct.Ports() {
			fmt.Fprintf(w, "com %s available=%t\n", p, p.Available())
		}
	}
	if raised := b.Alarms().Raised(); len(raised) > 0 {
		fmt.Fprintln(w)
		for _, a := range raised {
			fmt.Fprintf(w, "alarm %s %s: %s\n", a.Name, a.Severity, a.Reason)
		}
	}
	fmt.Fprintf(w, "\nbring-up %s in %s\n", outcome(rep.Complete()), rep.Elapsed)
	return initErr
}

func outcome(complete bool) string {
	if complete {
		return "complete"
	}
	return "halted"
}
