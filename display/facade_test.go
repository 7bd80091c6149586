package display

import (
	"errors"
	"image"
	"image/color"
	"io"
	"testing"

	"github.com/flavioheleno/mcuscript/ssd1306/image1bit"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"periph.io/x/conn/v3/display"
)

type fakePanel struct {
	rect  image.Rectangle
	draws int
	last  *image1bit.VerticalLSB
	err   error
}

func (p *fakePanel) String() string          { return "fakePanel" }
func (p *fakePanel) Halt() error             { return nil }
func (p *fakePanel) ColorModel() color.Model { return image1bit.BitModel }
func (p *fakePanel) Bounds() image.Rectangle { return p.rect }

func (p *fakePanel) Draw(dst image.Rectangle, src image.Image, sp image.Point) error {
	p.draws++
	img := image1bit.NewVerticalLSB(p.rect)
	for y := dst.Min.Y; y < dst.Max.Y; y++ {
		for x := dst.Min.X; x < dst.Max.X; x++ {
			img.Set(x, y, src.At(sp.X+x, sp.Y+y))
		}
	}
	p.last = img
	return p.err
}

type fakePlatform struct {
	setups    []Config
	teardowns int
	err       error
	panel     *fakePanel
}

func (p *fakePlatform) Setup(cfg Config) (display.Drawer, error) {
	p.setups = append(p.setups, cfg)
	if p.err != nil {
		return nil, p.err
	}
	p.panel = &fakePanel{rect: image.Rect(0, 0, cfg.W, cfg.H)}
	return p.panel, nil
}

func (p *fakePlatform) Teardown(display.Drawer) error {
	p.teardowns++
	return nil
}

func quietLogger() (logrus.FieldLogger, *test.Hook) {
	l, hook := test.NewNullLogger()
	l.SetLevel(logrus.DebugLevel)
	l.SetOutput(io.Discard)
	return l, hook
}

func newFacade(p Platform) (*Facade, *test.Hook) {
	l, hook := quietLogger()
	return New(&Options{Platform: p, Logger: l}), hook
}

func TestInitTwice(t *testing.T) {
	p := &fakePlatform{}
	f, hook := newFacade(p)

	st, err := f.Init(DefaultConfig())
	if err != nil || st != StatusOK {
		t.Fatalf("first Init() = %v, %v; want ok", st, err)
	}
	panel := p.panel

	for i := 0; i < 3; i++ {
		cfg := DefaultConfig()
		cfg.Mode = ModeSPISW4
		st, err := f.Init(cfg)
		if err != nil || st != StatusAlreadyInitialized {
			t.Fatalf("Init() #%d = %v, %v; want already initialized", i+2, st, err)
		}
	}
	if len(p.setups) != 1 {
		t.Errorf("platform setup called %d times, want 1", len(p.setups))
	}
	if p.panel != panel {
		t.Error("second Init replaced the panel")
	}
	if cfg, _ := f.Config(); cfg.Mode != ModeI2CHW {
		t.Errorf("Config().Mode = %v, want i2c_hw", cfg.Mode)
	}
	if e := hook.LastEntry(); e == nil || e.Level != logrus.InfoLevel {
		t.Error("double init should be logged at info")
	}
}

func TestCloseThenInit(t *testing.T) {
	p := &fakePlatform{}
	f, _ := newFacade(p)

	if _, err := f.Init(DefaultConfig()); err != nil {
		t.Fatal(err)
	}
	f.DrawStr("residue", 0, 12)
	f.Close()
	if f.Initialized() {
		t.Fatal("handle still live after Close")
	}
	if p.teardowns != 1 {
		t.Errorf("teardowns = %d, want 1", p.teardowns)
	}

	st, err := f.Init(DefaultConfig())
	if err != nil || st != StatusOK {
		t.Fatalf("Init() after Close = %v, %v; want ok", st, err)
	}
	for i, b := range f.Frame().Pix {
		if b != 0 {
			t.Fatalf("frame byte %d = 0x%02X, new handle must start blank", i, b)
		}
	}

	// Close without a handle does nothing.
	f.Close()
	f.Close()
	if p.teardowns != 2 {
		t.Errorf("teardowns = %d, want 2", p.teardowns)
	}
}

func TestUninitializedNoOps(t *testing.T) {
	p := &fakePlatform{}
	f, hook := newFacade(p)

	f.Clear()
	f.Update()
	f.DrawStr("hello", 1, 1)
	f.Close()

	if f.Initialized() || f.Frame() != nil {
		t.Error("no-op calls created a handle")
	}
	if _, ok := f.Config(); ok {
		t.Error("Config() reported a live handle")
	}
	if len(p.setups) != 0 || p.teardowns != 0 {
		t.Error("no-op calls reached the platform")
	}
	if len(hook.AllEntries()) != 0 {
		t.Error("no-op calls logged")
	}
}

func TestInitOutOfMemory(t *testing.T) {
	p := &fakePlatform{}
	l, hook := quietLogger()
	f := New(&Options{Platform: p, Logger: l, MemoryLimit: 512})

	st, err := f.Init(DefaultConfig()) // 128*8 = 1024 bytes
	if err != nil || st != StatusOutOfMemory {
		t.Fatalf("Init() = %v, %v; want out of memory", st, err)
	}
	if f.Initialized() || len(p.setups) != 0 {
		t.Error("out of memory must abort before setup")
	}
	if e := hook.LastEntry(); e == nil || e.Level != logrus.ErrorLevel {
		t.Error("out of memory should be logged at error")
	}

	cfg := DefaultConfig()
	cfg.H = 32
	if st, _ := f.Init(cfg); st != StatusOK {
		t.Errorf("128x32 Init() = %v, want ok", st)
	}
}

func TestInitSetupFailure(t *testing.T) {
	boom := errors.New("no bus")
	p := &fakePlatform{err: boom}
	f, _ := newFacade(p)

	st, err := f.Init(DefaultConfig())
	if !errors.Is(err, ErrInitFailed) || !errors.Is(err, boom) {
		t.Fatalf("Init() error = %v, want ErrInitFailed wrapping the platform error", err)
	}
	if st != 0 {
		t.Errorf("Init() status = %v, want 0", st)
	}
	if f.Initialized() {
		t.Error("failed Init left a handle")
	}

	p.err = nil
	if st, err := f.Init(DefaultConfig()); st != StatusOK || err != nil {
		t.Errorf("Init() after failure = %v, %v; want ok", st, err)
	}
}

func TestInitDefaultsSize(t *testing.T) {
	p := &fakePlatform{}
	f, _ := newFacade(p)

	if _, err := f.Init(Config{Mode: ModeI2CSW}); err != nil {
		t.Fatal(err)
	}
	got := p.setups[0]
	if got.W != 128 || got.H != 64 {
		t.Errorf("setup size = %dx%d, want 128x64", got.W, got.H)
	}
}

func TestDrawStrClearUpdate(t *testing.T) {
	p := &fakePlatform{}
	f, _ := newFacade(p)
	if _, err := f.Init(DefaultConfig()); err != nil {
		t.Fatal(err)
	}

	f.DrawStr("Hi", 0, 13)
	if lit(f.Frame()) == 0 {
		t.Fatal("DrawStr lit no pixel")
	}
	if p.panel.draws != 0 {
		t.Fatal("DrawStr must not reach the panel")
	}

	f.Update()
	if p.panel.draws != 1 {
		t.Fatalf("draws = %d, want 1", p.panel.draws)
	}
	if lit(p.panel.last) != lit(f.Frame()) {
		t.Error("panel did not receive the frame")
	}

	f.Clear()
	if lit(f.Frame()) != 0 {
		t.Error("Clear left pixels on")
	}
	if lit(p.panel.last) == 0 {
		t.Error("Clear must not reach the panel")
	}
}

func TestDrawStrOutOfRange(t *testing.T) {
	p := &fakePlatform{}
	f, _ := newFacade(p)
	if _, err := f.Init(DefaultConfig()); err != nil {
		t.Fatal(err)
	}

	f.DrawStr("off screen", 500, -300)
	f.DrawStr("below", 10, 90)
	if n := lit(f.Frame()); n != 0 {
		t.Errorf("%d pixels lit by text outside the frame", n)
	}
}

func TestUpdateErrorIsLogged(t *testing.T) {
	p := &fakePlatform{}
	f, hook := newFacade(p)
	if _, err := f.Init(DefaultConfig()); err != nil {
		t.Fatal(err)
	}
	p.panel.err = errors.New("nack")

	f.Update()
	if e := hook.LastEntry(); e == nil || e.Level != logrus.WarnLevel {
		t.Error("update failure should be logged at warn")
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
		ok   bool
	}{
		{"i2c_sw", ModeI2CSW, true},
		{"i2c_hw", ModeI2CHW, true},
		{"spi_sw_3pin", ModeSPISW3, true},
		{"spi_sw_4pin", ModeSPISW4, true},
		{"spi_hw_4pin", ModeSPIHW4, true},
		{"I2C_SW", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseMode(tt.in)
			if got != tt.want || ok != tt.ok {
				t.Errorf("ParseMode(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
			}
			if ok && got.String() != tt.in {
				t.Errorf("String() = %q, want %q", got.String(), tt.in)
			}
		})
	}
	if ModeI2CSW != 1 || ModeI2CHW != 2 || ModeSPIHW4 != 5 {
		t.Error("mode values changed")
	}
}

func lit(img *image1bit.VerticalLSB) int {
	n := 0
	for _, b := range img.Pix {
		for ; b != 0; b &= b - 1 {
			n++
		}
	}
	return n
}
