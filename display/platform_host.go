//go:build !tinygo

package display

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/flavioheleno/mcuscript/gpiobridge"
	"github.com/flavioheleno/mcuscript/softbus"
	"github.com/flavioheleno/mcuscript/ssd1306"
	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// HostOptions is the configuration of a HostPlatform.
type HostOptions struct {
	// Bridge drives the software modes (default: a bridge over Lookup).
	Bridge *gpiobridge.Bridge
	// Lookup resolves pin numbers of the hardware SPI mode (default:
	// gpiobridge.HostLookup after host.Init).
	Lookup gpiobridge.Lookup
	// I2CBus and SPIPort name the hardware buses ("" selects the first one).
	I2CBus  string
	SPIPort string
	// Addr is the I²C address of the panel (default: ssd1306.DefaultAddr).
	Addr   uint16
	Logger logrus.FieldLogger
}

// HostPlatform sets the display up with periph.io.
type HostPlatform struct {
	opts     HostOptions
	initOnce sync.Once
	initErr  error
	closers  []io.Closer
}

func defaultPlatform() Platform {
	return NewHostPlatform(nil)
}

// NewHostPlatform returns a platform supporting every Mode.
func NewHostPlatform(opts *HostOptions) *HostPlatform {
	var o HostOptions
	if opts != nil {
		o = *opts
	}
	if o.Logger == nil {
		o.Logger = logrus.WithField("tag", "disp")
	}
	p := &HostPlatform{opts: o}
	if o.Lookup == nil {
		p.opts.Lookup = func(n int) gpio.PinIO {
			if err := p.hostInit(); err != nil {
				return nil
			}
			return gpiobridge.HostLookup(n)
		}
	}
	if o.Bridge == nil {
		p.opts.Bridge = gpiobridge.New(&gpiobridge.Options{Lookup: p.opts.Lookup})
	}
	return p
}

// Bridge returns the bridge driving the software modes.
func (p *HostPlatform) Bridge() *gpiobridge.Bridge {
	return p.opts.Bridge
}

func (p *HostPlatform) hostInit() error {
	p.initOnce.Do(func() {
		if _, err := host.Init(); err != nil {
			p.initErr = fmt.Errorf("display: host init: %w", err)
		}
	})
	return p.initErr
}

// Setup implements Platform.
func (p *HostPlatform) Setup(cfg Config) (display.Drawer, error) {
	opts := &ssd1306.Opts{W: cfg.W, H: cfg.H, Addr: p.opts.Addr}
	b := p.opts.Bridge

	switch cfg.Mode {
	case ModeI2CSW:
		if err := p.assign(cfg, gpiobridge.SlotI2CClock, gpiobridge.SlotI2CData); err != nil {
			return nil, err
		}
		b.Dispatch(gpiobridge.MsgGPIOAndDelayInit, 0)
		return p.soft(ssd1306.NewI2C(softbus.NewI2C(b), opts))

	case ModeI2CHW:
		if err := p.hostInit(); err != nil {
			return nil, err
		}
		bus, err := i2creg.Open(p.opts.I2CBus)
		if err != nil {
			return nil, fmt.Errorf("display: %w", err)
		}
		dev, err := ssd1306.NewI2C(bus, opts)
		if err != nil {
			_ = bus.Close()
			return nil, err
		}
		p.closers = append(p.closers, bus)
		return dev, nil

	case ModeSPISW3:
		opts.Sleep = p.delay
		if err := p.assign(cfg, gpiobridge.SlotSPIClock, gpiobridge.SlotSPIData, gpiobridge.SlotReset, gpiobridge.SlotCS); err != nil {
			return nil, err
		}
		b.Dispatch(gpiobridge.MsgGPIOAndDelayInit, 0)
		opts.RST = softbus.NewPin(b, gpiobridge.SlotReset)
		return p.soft(ssd1306.NewSPI(softbus.NewSPI(b, true), nil, opts))

	case ModeSPISW4:
		opts.Sleep = p.delay
		if err := p.assign(cfg, gpiobridge.SlotSPIClock, gpiobridge.SlotSPIData, gpiobridge.SlotReset, gpiobridge.SlotDC); err != nil {
			return nil, err
		}
		b.Dispatch(gpiobridge.MsgGPIOAndDelayInit, 0)
		opts.RST = softbus.NewPin(b, gpiobridge.SlotReset)
		return p.soft(ssd1306.NewSPI(softbus.NewSPI(b, false), softbus.NewPin(b, gpiobridge.SlotDC), opts))

	case ModeSPIHW4:
		if err := p.hostInit(); err != nil {
			return nil, err
		}
		rst, dc := p.opts.Lookup(cfg.Pins[2]), p.opts.Lookup(cfg.Pins[3])
		if rst == nil || dc == nil {
			return nil, fmt.Errorf("%w: reset %d / dc %d", gpiobridge.ErrUnknownPin, cfg.Pins[2], cfg.Pins[3])
		}
		port, err := spireg.Open(p.opts.SPIPort)
		if err != nil {
			return nil, fmt.Errorf("display: %w", err)
		}
		opts.RST = rst
		dev, err := ssd1306.NewSPI(port, dc, opts)
		if err != nil {
			_ = port.Close()
			return nil, err
		}
		p.closers = append(p.closers, port)
		return dev, nil
	}
	return nil, fmt.Errorf("display: unsupported mode %s", cfg.Mode)
}

// delay waits on the bridge, in steps of at most 255ms.
func (p *HostPlatform) delay(d time.Duration) {
	ms := int(d / time.Millisecond)
	for ms > 0 {
		n := min(ms, 255)
		p.opts.Bridge.Dispatch(gpiobridge.MsgDelayMilli, uint8(n))
		ms -= n
	}
}

// soft finishes a software mode setup, clearing the bridge on failure.
func (p *HostPlatform) soft(dev *ssd1306.Dev, err error) (display.Drawer, error) {
	if err != nil {
		p.opts.Bridge.Reset()
		return nil, err
	}
	return dev, nil
}

// assign binds pin0.. of cfg to slots, in order, after clearing the bridge.
func (p *HostPlatform) assign(cfg Config, slots ...gpiobridge.Slot) error {
	b := p.opts.Bridge
	b.Reset()
	for i, s := range slots {
		if err := b.Assign(s, cfg.Pins[i]); err != nil {
			b.Reset()
			return err
		}
	}
	return nil
}

// Teardown implements Platform. The panel keeps showing its content; buses
// opened by Setup are closed and the bridge slots cleared.
func (p *HostPlatform) Teardown(panel display.Drawer) error {
	var errs []error
	for _, c := range p.closers {
		errs = append(errs, c.Close())
	}
	p.closers = nil
	p.opts.Bridge.Reset()
	return errors.Join(errs...)
}
