package seq

// Phase is one stage of board bring-up. Phases run strictly in Order().
type Phase uint8

const (
	PhaseTimeBase    Phase = iota // tick and delay source
	PhaseBusFabric                // shared buses before any device behind them
	PhaseOptional                 // build-selected receivers and links
	PhaseRegistries               // event dispatch, objects, alarms, task monitor
	PhaseCOM                      // logical COM table over USART/USB tables
	PhasePeripherals              // servo, ADC, GPIO, receivers, USB, I2C, IAP
	PhaseWatchdog                 // always last

	NumPhases
)

var phaseNames = [NumPhases]string{
	PhaseTimeBase:    "time_base",
	PhaseBusFabric:   "bus_fabric",
	PhaseOptional:    "optional",
	PhaseRegistries:  "registries",
	PhaseCOM:         "com",
	PhasePeripherals: "peripherals",
	PhaseWatchdog:    "watchdog",
}

func (p Phase) String() string {
	if p < NumPhases {
		return phaseNames[p]
	}
	return "unknown"
}

func (p Phase) Valid() bool { return p < NumPhases }

var requires = [NumPhases][]Phase{
	PhaseTimeBase:    nil,
	PhaseBusFabric:   {PhaseTimeBase},
	PhaseOptional:    {PhaseBusFabric},
	PhaseRegistries:  {PhaseTimeBase},
	PhaseCOM:         {PhaseRegistries, PhaseOptional},
	PhasePeripherals: {PhaseRegistries, PhaseBusFabric, PhaseCOM},
	PhaseWatchdog:    {PhasePeripherals, PhaseCOM, PhaseRegistries, PhaseOptional, PhaseBusFabric, PhaseTimeBase},
}

// Requires lists the phases that must complete before p starts.
func (p Phase) Requires() []Phase {
	if !p.Valid() {
		return nil
	}
	return append([]Phase(nil), requires[p]...)
}

// Order returns the execution order: a topological sort of the dependency
// graph, ties broken by phase number.
func Order() []Phase {
	var (
		out  []Phase
		done [NumPhases]bool
	)
	for len(out) < int(NumPhases) {
		progressed := false
		for p := Phase(0); p < NumPhases; p++ {
			if done[p] || !ready(p, &done) {
				continue
			}
			done[p] = true
			out = append(out, p)
			progressed = true
			break
		}
		if !progressed {
			panic("seq: phase dependency cycle")
		}
	}
	return out
}

func ready(p Phase, done *[NumPhases]bool) bool {
	for _, r := range requires[p] {
		if !done[r] {
			return false
		}
	}
	return true
}
