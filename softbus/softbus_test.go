package softbus

import (
	"bytes"
	"errors"
	"testing"

	"github.com/flavioheleno/mcuscript/gpiobridge"
	"github.com/flavioheleno/mcuscript/ssd1306"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

type call struct {
	msg gpiobridge.Msg
	arg uint8
}

// recorder logs every message and answers like a bridge with nothing assigned.
type recorder struct {
	calls []call
}

func (r *recorder) Dispatch(msg gpiobridge.Msg, arg uint8) uint8 {
	r.calls = append(r.calls, call{msg, arg})
	switch {
	case msg >= gpiobridge.MsgGPIOAndDelayInit && msg <= gpiobridge.MsgDelayI2C:
		return 1
	case msg >= gpiobridge.MsgGPIOD0 && msg <= gpiobridge.MsgGPIOI2CData:
		return 1
	}
	return 0
}

// i2cFrames decodes the recorded line changes into transactions.
func i2cFrames(calls []call) [][]byte {
	var frames [][]byte
	var cur []byte
	scl, sda := true, true
	var bits, n int
	for _, c := range calls {
		switch c.msg {
		case gpiobridge.MsgGPIOI2CClock:
			high := c.arg != 0
			if high && !scl {
				// Rising edge: sample. Every ninth bit is the ACK slot.
				if n < 8 {
					bits = bits<<1 | int(level(sda))
					n++
				} else {
					cur = append(cur, byte(bits))
					bits, n = 0, 0
				}
			}
			scl = high
		case gpiobridge.MsgGPIOI2CData:
			high := c.arg != 0
			if scl && sda && !high {
				cur, bits, n = nil, 0, 0 // start
			}
			if scl && !sda && high {
				frames = append(frames, cur) // stop
			}
			sda = high
		}
	}
	return frames
}

func TestI2CTx(t *testing.T) {
	r := &recorder{}
	bus := NewI2C(r)

	if err := bus.Tx(0x3C, []byte{0x00, 0xAF, 0x5A}, nil); err != nil {
		t.Fatal(err)
	}
	frames := i2cFrames(r.calls)
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	want := []byte{0x78, 0x00, 0xAF, 0x5A}
	if !bytes.Equal(frames[0], want) {
		t.Errorf("frame = % X, want % X", frames[0], want)
	}
}

func TestI2CRead(t *testing.T) {
	bus := NewI2C(&recorder{})
	if err := bus.Tx(0x3C, nil, make([]byte, 1)); !errors.Is(err, ErrReadUnsupported) {
		t.Errorf("Tx with read buffer error = %v, want ErrReadUnsupported", err)
	}
	if err := bus.Tx(0x200, []byte{1}, nil); err == nil {
		t.Error("10-bit address should be rejected")
	}
}

func TestI2CSetSpeed(t *testing.T) {
	tests := []struct {
		name string
		f    physic.Frequency
		want uint8
	}{
		{"standard", 100 * physic.KiloHertz, 1},
		{"fast", 400 * physic.KiloHertz, 4},
		{"slow rounds up to 1", 10 * physic.KiloHertz, 1},
		{"very fast clamps", 100 * physic.GigaHertz, 255},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &recorder{}
			bus := NewI2C(r)
			if err := bus.SetSpeed(tt.f); err != nil {
				t.Fatal(err)
			}
			if err := bus.Tx(0x3C, nil, nil); err != nil {
				t.Fatal(err)
			}
			for _, c := range r.calls {
				if c.msg == gpiobridge.MsgDelayI2C && c.arg != tt.want {
					t.Fatalf("DELAY_I2C arg = %d, want %d", c.arg, tt.want)
				}
			}
		})
	}

	if err := NewI2C(&recorder{}).SetSpeed(0); err == nil {
		t.Error("SetSpeed(0) should fail")
	}
}

// spiWords decodes data sampled on rising clock edges, starting from the
// levels the bridge init leaves on the lines (all high). rest is the number
// of bits sampled after the last full word.
func spiWords(calls []call, bits int) (words []uint16, rest int) {
	var v uint16
	var n int
	clk, data := true, true
	for _, c := range calls {
		switch c.msg {
		case gpiobridge.MsgGPIOSPIData:
			data = c.arg != 0
		case gpiobridge.MsgGPIOSPIClock:
			high := c.arg != 0
			if high && !clk {
				v <<= 1
				if data {
					v |= 1
				}
				n++
				if n == bits {
					words = append(words, v)
					v, n = 0, 0
				}
			}
			clk = high
		}
	}
	return words, n
}

func TestSPI8Bit(t *testing.T) {
	r := &recorder{}
	port := NewSPI(r, true)
	c, err := port.Connect(physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Tx([]byte{0xA5, 0x01}, nil); err != nil {
		t.Fatal(err)
	}

	got, rest := spiWords(r.calls, 8)
	if len(got) != 2 || got[0] != 0xA5 || got[1] != 0x01 || rest != 0 {
		t.Errorf("words = %v (+%d bits), want [165 1]", got, rest)
	}
	if r.calls[0] != (call{gpiobridge.MsgGPIOSPIClock, 0}) {
		t.Errorf("first call = %+v, want clock low", r.calls[0])
	}
	first, last := r.calls[1], r.calls[len(r.calls)-1]
	if first != (call{gpiobridge.MsgGPIOCS, 0}) {
		t.Errorf("first transfer call = %+v, want CS low", first)
	}
	if last != (call{gpiobridge.MsgGPIOCS, 1}) {
		t.Errorf("last call = %+v, want CS high", last)
	}
}

func TestSPI9Bit(t *testing.T) {
	r := &recorder{}
	port := NewSPI(r, false)
	c, err := port.Connect(physic.MegaHertz, spi.Mode0, 9)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Tx([]byte{1, 0x40, 0, 0xAE}, nil); err != nil {
		t.Fatal(err)
	}
	got, rest := spiWords(r.calls, 9)
	if len(got) != 2 || got[0] != 0x140 || got[1] != 0x0AE || rest != 0 {
		t.Errorf("words = %#v (+%d bits), want [0x140 0xae]", got, rest)
	}
	for _, cl := range r.calls {
		if cl.msg == gpiobridge.MsgGPIOCS {
			t.Fatal("CS toggled without useCS")
		}
	}

	if err := c.Tx([]byte{1}, nil); err == nil {
		t.Error("odd byte count should fail for 9-bit words")
	}
}

func TestSPIMode3IdleHigh(t *testing.T) {
	r := &recorder{}
	c, err := NewSPI(r, false).Connect(0, spi.Mode3, 8)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Tx([]byte{0xFF}, nil); err != nil {
		t.Fatal(err)
	}
	var lastClock call
	for _, c := range r.calls {
		if c.msg == gpiobridge.MsgGPIOSPIClock {
			lastClock = c
		}
	}
	if lastClock.arg != 1 {
		t.Error("mode 3 clock should return to idle high")
	}
}

func TestSPIConnect(t *testing.T) {
	tests := []struct {
		name string
		mode spi.Mode
		bits int
	}{
		{"16 bits", spi.Mode0, 16},
		{"mode 1", spi.Mode1, 8},
		{"lsb first", spi.Mode0 | spi.LSBFirst, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewSPI(&recorder{}, false).Connect(0, tt.mode, tt.bits); err == nil {
				t.Error("Connect should fail")
			}
		})
	}

	port := NewSPI(&recorder{}, false)
	if _, err := port.Connect(0, spi.Mode0, 8); err != nil {
		t.Fatal(err)
	}
	if _, err := port.Connect(0, spi.Mode0, 8); err == nil {
		t.Error("second Connect should fail")
	}
	_ = port.Close()
	if _, err := port.Connect(0, spi.Mode0, 8); err != nil {
		t.Errorf("Connect after Close error = %v", err)
	}
}

func TestSPIRead(t *testing.T) {
	c, err := NewSPI(&recorder{}, false).Connect(0, spi.Mode0, 8)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Tx(nil, make([]byte, 2)); !errors.Is(err, ErrReadUnsupported) {
		t.Errorf("Tx read error = %v, want ErrReadUnsupported", err)
	}
}

func TestPin(t *testing.T) {
	r := &recorder{}
	p := NewPin(r, gpiobridge.SlotDC)

	if err := p.Out(gpio.High); err != nil {
		t.Fatal(err)
	}
	if err := p.Out(gpio.Low); err != nil {
		t.Fatal(err)
	}
	want := []call{{gpiobridge.MsgGPIODC, 1}, {gpiobridge.MsgGPIODC, 0}}
	if len(r.calls) != 2 || r.calls[0] != want[0] || r.calls[1] != want[1] {
		t.Errorf("calls = %+v, want %+v", r.calls, want)
	}

	if err := NewPin(r, gpiobridge.SlotCS2).Out(gpio.High); err == nil {
		t.Error("CS2 has no level message, Out should fail")
	}
	if p.String() != "softbus.DC" {
		t.Errorf("String() = %q", p.String())
	}
}

func TestSSD1306OverSoftI2C(t *testing.T) {
	r := &recorder{}
	if _, err := ssd1306.NewI2C(NewI2C(r), &ssd1306.Opts{W: 8, H: 8}); err != nil {
		t.Fatal(err)
	}
	frames := i2cFrames(r.calls)
	if len(frames) != 4 {
		t.Fatalf("got %d frames, want 4", len(frames))
	}
	if !bytes.HasPrefix(frames[0], []byte{0x78, 0x00, 0xAE}) {
		t.Errorf("first frame starts % X, want 78 00 AE", frames[0][:3])
	}
	if !bytes.Equal(frames[3], []byte{0x78, 0x00, 0xAF}) {
		t.Errorf("last frame = % X, want 78 00 AF", frames[3])
	}
}

func TestSPIClockIdlesBeforeFirstWord(t *testing.T) {
	tests := []struct {
		name string
		mode spi.Mode
		want uint8
	}{
		{"mode 0 idles low", spi.Mode0, 0},
		{"mode 3 idles high", spi.Mode3, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &recorder{}
			c, err := NewSPI(r, false).Connect(0, tt.mode, 8)
			if err != nil {
				t.Fatal(err)
			}
			if len(r.calls) != 1 || r.calls[0] != (call{gpiobridge.MsgGPIOSPIClock, tt.want}) {
				t.Fatalf("Connect calls = %+v, want clock %d", r.calls, tt.want)
			}
			if err := c.Tx([]byte{0xAE, 0x81}, nil); err != nil {
				t.Fatal(err)
			}
			got, rest := spiWords(r.calls, 8)
			if len(got) != 2 || got[0] != 0xAE || got[1] != 0x81 || rest != 0 {
				t.Errorf("words = %#v (+%d bits), want [0xae 0x81]", got, rest)
			}
		})
	}
}

func TestSSD1306OverSoftSPI(t *testing.T) {
	tests := []struct {
		name  string
		cs    bool
		dc    bool
		bits  int
		first uint16
	}{
		{"4-wire", false, true, 8, 0xAE},
		{"3-wire", true, false, 9, 0x0AE},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &recorder{}
			var dc gpio.PinOut
			if tt.dc {
				dc = NewPin(r, gpiobridge.SlotDC)
			}
			if _, err := ssd1306.NewSPI(NewSPI(r, tt.cs), dc, &ssd1306.Opts{W: 8, H: 8}); err != nil {
				t.Fatal(err)
			}
			words, rest := spiWords(r.calls, tt.bits)
			if rest != 0 {
				t.Errorf("%d stray bits after %d words", rest, len(words))
			}
			if len(words) == 0 || words[0] != tt.first {
				t.Fatalf("first word = %#v, want %#x", words, tt.first)
			}
			if last := words[len(words)-1]; last&0xFF != 0xAF {
				t.Errorf("last word = %#x, want display on", last)
			}
		})
	}
}
