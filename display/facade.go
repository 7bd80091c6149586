// Package display owns the single display handle used by scripts.
//
// A Facade holds at most one live handle. The handle carries the resolved
// Config, the panel returned by the Platform and an in-memory 1-bit frame;
// drawing only touches the frame until Update sends it to the panel.
// Every drawing call is a no-op while no handle is live.
package display

import (
	"errors"
	"fmt"
	"image"

	"github.com/flavioheleno/mcuscript/ssd1306/image1bit"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/display"
)

// DefaultMemoryLimit is the frame budget of a Facade, in bytes.
const DefaultMemoryLimit = 16 * 1024

// ErrInitFailed wraps every platform setup failure.
var ErrInitFailed = errors.New("display: init failed")

// Options is the configuration of a Facade.
type Options struct {
	Platform    Platform           // default: the platform of the build target
	MemoryLimit int                // default: DefaultMemoryLimit
	Logger      logrus.FieldLogger // default: tag "disp"
}

// Facade is the owner of the display handle.
type Facade struct {
	platform Platform
	limit    int
	log      logrus.FieldLogger

	h *handle
}

type handle struct {
	cfg   Config
	panel display.Drawer
	frame *image1bit.VerticalLSB
	face  font.Face
}

// New returns a Facade without a live handle.
func New(opts *Options) *Facade {
	var o Options
	if opts != nil {
		o = *opts
	}
	if o.Platform == nil {
		o.Platform = defaultPlatform()
	}
	if o.MemoryLimit == 0 {
		o.MemoryLimit = DefaultMemoryLimit
	}
	if o.Logger == nil {
		o.Logger = logrus.WithField("tag", "disp")
	}
	return &Facade{platform: o.Platform, limit: o.MemoryLimit, log: o.Logger}
}

// Init brings the display up.
//
// A live handle is left untouched and StatusAlreadyInitialized returned. A
// frame that does not fit the memory limit gives StatusOutOfMemory. A platform
// failure releases the handle and returns an error wrapping ErrInitFailed.
func (f *Facade) Init(cfg Config) (Status, error) {
	if f.h != nil {
		f.log.Info("disp is already inited")
		return StatusAlreadyInitialized, nil
	}
	if cfg.W == 0 {
		cfg.W = 128
	}
	if cfg.H == 0 {
		cfg.H = 64
	}
	if cfg.W < 0 || cfg.H < 0 {
		return 0, fmt.Errorf("%w: invalid size %dx%d", ErrInitFailed, cfg.W, cfg.H)
	}

	size := cfg.W * ((cfg.H + 7) / 8)
	if size > f.limit {
		f.log.WithField("bytes", size).Error("disp out of memory")
		return StatusOutOfMemory, nil
	}
	h := &handle{
		cfg:   cfg,
		frame: image1bit.NewVerticalLSB(image.Rect(0, 0, cfg.W, cfg.H)),
		face:  basicfont.Face7x13,
	}

	panel, err := f.platform.Setup(cfg)
	if err != nil {
		f.log.WithError(err).WithField("mode", cfg.Mode).Warn("disp setup failed")
		return 0, fmt.Errorf("%w: %w", ErrInitFailed, err)
	}
	h.panel = panel
	f.h = h
	f.log.WithFields(logrus.Fields{"mode": cfg.Mode, "panel": panel}).Debug("disp ready")
	return StatusOK, nil
}

// Initialized reports whether a handle is live.
func (f *Facade) Initialized() bool {
	return f.h != nil
}

// Config returns the configuration of the live handle.
func (f *Facade) Config() (Config, bool) {
	if f.h == nil {
		return Config{}, false
	}
	return f.h.cfg, true
}

// Close releases the handle. It is a no-op without one.
func (f *Facade) Close() {
	if f.h == nil {
		return
	}
	if err := f.platform.Teardown(f.h.panel); err != nil {
		f.log.WithError(err).Warn("disp teardown failed")
	}
	f.h = nil
}

// Clear turns every pixel of the frame off. The panel is not touched.
func (f *Facade) Clear() {
	if f.h == nil {
		return
	}
	f.h.frame.Clear()
}

// Update sends the frame to the panel. Errors are logged only.
func (f *Facade) Update() {
	if f.h == nil {
		return
	}
	if err := f.h.panel.Draw(f.h.frame.Bounds(), f.h.frame, image.Point{}); err != nil {
		f.log.WithError(err).Warn("disp update failed")
	}
}

// DrawStr draws text into the frame with its baseline starting at (x, y).
// Pixels outside the frame are dropped.
func (f *Facade) DrawStr(text string, x, y int) {
	if f.h == nil {
		return
	}
	d := font.Drawer{
		Dst:  f.h.frame,
		Src:  image.NewUniform(image1bit.On),
		Face: f.h.face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

// Frame exposes the in-memory frame of the live handle, nil without one.
func (f *Facade) Frame() *image1bit.VerticalLSB {
	if f.h == nil {
		return nil
	}
	return f.h.frame
}
