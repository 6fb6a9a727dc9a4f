package periph

// ClaimKind is the kind of hardware resource a descriptor owns.
type ClaimKind uint8

const (
	ClaimPin ClaimKind = iota
	ClaimDMA
	ClaimVector
	ClaimTimerChannel
	ClaimInstance
)

var claimNames = [...]string{"pin", "dma", "vector", "timer_channel", "instance"}

func (k ClaimKind) String() string {
	if int(k) < len(claimNames) {
		return claimNames[k]
	}
	return "unknown"
}

// Claim is one owned resource. Pin is set for ClaimPin only.
type Claim struct {
	Kind ClaimKind
	Key  string
	Pin  PinID
}

type claimSet []Claim

func (s *claimSet) pin(p Pin) {
	if p.IsZero() {
		return
	}
	*s = append(*s, Claim{Kind: ClaimPin, Key: p.ID().String(), Pin: p.ID()})
}

func (s *claimSet) vector(v Vector) {
	*s = append(*s, Claim{Kind: ClaimVector, Key: v.String()})
}

func (s *claimSet) instance(i Instance) {
	if i == "" {
		return
	}
	*s = append(*s, Claim{Kind: ClaimInstance, Key: string(i)})
}

func (s *claimSet) timerChannel(tc TimerChannel) {
	*s = append(*s, Claim{Kind: ClaimTimerChannel, Key: tc.String()})
}

// dma claims every stream channel and each distinct completion vector.
func (s *claimSet) dma(b *DMABinding) {
	if b == nil {
		return
	}
	seen := map[Vector]bool{}
	if b.IRQ.Enabled {
		s.vector(b.IRQ.Vector)
		seen[b.IRQ.Vector] = true
	}
	for _, st := range b.streams() {
		*s = append(*s, Claim{Kind: ClaimDMA, Key: st.Channel.String()})
		if v, ok := st.Channel.Vector(); ok && !seen[v] && b.IRQ.Enabled {
			s.vector(v)
			seen[v] = true
		}
	}
}

// DMAVectors returns the distinct completion vectors a DMA binding raises,
// the bound IRQ first.
func DMAVectors(b *DMABinding) []Vector {
	if b == nil || !b.IRQ.Enabled {
		return nil
	}
	out := []Vector{b.IRQ.Vector}
	for _, st := range b.streams() {
		if v, ok := st.Channel.Vector(); ok && v != out[0] {
			out = append(out, v)
		}
	}
	return out
}
