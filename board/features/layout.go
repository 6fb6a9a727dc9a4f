package features

// Link is a logical serial link of the board.
type Link uint8

const (
	Telemetry Link = iota
	GPSLink
	USBLink
	Aux
)

var linkNames = [...]string{"telemetry", "gps", "usb", "aux"}

func (l Link) String() string {
	if int(l) < len(linkNames) {
		return linkNames[l]
	}
	return "unknown"
}

// Layout is the index assignment for one feature selection.
type Layout struct {
	USART []Link // USART table order
	COM   []Link // COM table order
}

// Allocate assigns USART and COM indices in a fixed order over the enabled
// features. The same flags always give the same layout, and links keep their
// relative order, but indices are dense: enabling an earlier link shifts the
// ones after it. USART: telemetry, gps, aux (Spektrum). COM: telemetry, gps,
// usb, aux.
func Allocate(f Flags) Layout {
	var l Layout
	l.USART = append(l.USART, Telemetry)
	l.COM = append(l.COM, Telemetry)
	if f.Enabled(GPS) {
		l.USART = append(l.USART, GPSLink)
		l.COM = append(l.COM, GPSLink)
	}
	if f.Enabled(USBHID) {
		l.COM = append(l.COM, USBLink)
	}
	if f.Enabled(Spektrum) {
		l.USART = append(l.USART, Aux)
		l.COM = append(l.COM, Aux)
	}
	return l
}

func index(ls []Link, x Link) (int, bool) {
	for i, l := range ls {
		if l == x {
			return i, true
		}
	}
	return -1, false
}

// USARTIndex returns the USART table index of l.
func (l Layout) USARTIndex(x Link) (int, bool) { return index(l.USART, x) }

// COMIndex returns the COM table index of l.
func (l Layout) COMIndex(x Link) (int, bool) { return index(l.COM, x) }

func (l Layout) String() string {
	s := "usart["
	for i, x := range l.USART {
		if i > 0 {
			s += " "
		}
		s += x.String()
	}
	s += "] com["
	for i, x := range l.COM {
		if i > 0 {
			s += " "
		}
		s += x.String()
	}
	return s + "]"
}
