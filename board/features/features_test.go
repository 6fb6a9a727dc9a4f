package features

import (
	"testing"

	"boardcode-go/errcode"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want Flags
	}{
		{"", Default()},
		{"none", 0},
		{"none gps", GPS},
		{"none +spektrum,usb_hid", Spektrum | USBHID},
		{"-pwm", Default() &^ PWM},
		{"none 'ppm'", PPM},
	}
	for _, c := range cases {
		got, err := Parse(c.in)
		if err != nil {
			t.Fatalf("%q: %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("%q: got %v want %v", c.in, got, c.want)
		}
	}
	if _, err := Parse("lidar"); !errcode.Is(err, errcode.InvalidParams) {
		t.Fatalf("unknown feature: %v", err)
	}
}

func TestValidateExclusions(t *testing.T) {
	if err := (GPS | PWM | USBHID).Validate(); err != nil {
		t.Fatal(err)
	}
	if err := (GPS | Spektrum).Validate(); !errcode.Is(err, errcode.ConfigConflict) {
		t.Fatalf("gps+spektrum: %v", err)
	}
	if err := (PWM | PPM).Validate(); !errcode.Is(err, errcode.ConfigConflict) {
		t.Fatalf("pwm+ppm: %v", err)
	}
}

func TestString(t *testing.T) {
	if s := (GPS | USBHID).String(); s != "gps,usb_hid" {
		t.Fatal(s)
	}
	if s := Flags(0).String(); s != "none" {
		t.Fatal(s)
	}
}

func TestAllocateIsDeterministic(t *testing.T) {
	l := Allocate(0)
	if len(l.USART) != 1 || l.USART[0] != Telemetry || len(l.COM) != 1 {
		t.Fatalf("bare: %+v", l)
	}
	if _, ok := l.COMIndex(Aux); ok {
		t.Fatal("aux must be absent without spektrum")
	}

	l = Allocate(Spektrum | USBHID)
	if i, _ := l.USARTIndex(Aux); i != 1 {
		t.Fatalf("aux usart index = %d", i)
	}
	if i, _ := l.COMIndex(USBLink); i != 1 {
		t.Fatalf("usb com index = %d", i)
	}
	if i, _ := l.COMIndex(Aux); i != 2 {
		t.Fatalf("aux com index = %d", i)
	}

	a, b := Allocate(GPS|USBHID), Allocate(GPS|USBHID)
	if a.String() != b.String() {
		t.Fatal("allocation must be stable")
	}
	if i, _ := a.COMIndex(Telemetry); i != 0 {
		t.Fatal("telemetry is always COM 0")
	}
}

func TestAllocateKeepsRelativeOrder(t *testing.T) {
	rank := map[Link]int{Telemetry: 0, GPSLink: 1, USBLink: 2, Aux: 3}
	for f := Flags(0); f <= All; f++ {
		if f.Validate() != nil {
			continue
		}
		l := Allocate(f)
		for i := 1; i < len(l.COM); i++ {
			if rank[l.COM[i-1]] >= rank[l.COM[i]] {
				t.Fatalf("%s: com order %v", f, l.COM)
			}
		}
	}
	without, with := Allocate(Spektrum), Allocate(Spektrum|USBHID)
	a, _ := without.COMIndex(Aux)
	b, _ := with.COMIndex(Aux)
	if a != 1 || b != 2 {
		t.Fatalf("aux moves from 1 to 2 when usb is added, got %d and %d", a, b)
	}
}
