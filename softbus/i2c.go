// Package softbus bit-bangs I²C and SPI through a gpiobridge.Bridge.
//
// Every line change and every wait is a bridge message, so the same transport
// runs against real GPIO or against a recorder in tests.
package softbus

import (
	"errors"
	"sync"

	"github.com/flavioheleno/mcuscript/gpiobridge"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"tinygo.org/x/drivers"
)

// ErrReadUnsupported is returned when a transaction asks for data back.
var ErrReadUnsupported = errors.New("softbus: reads are not supported")

// Dispatcher is the part of gpiobridge.Bridge the transports use.
type Dispatcher interface {
	Dispatch(msg gpiobridge.Msg, arg uint8) uint8
}

// I2C is a write-only I²C master. The data line is never read back: ACK
// clocks are emitted with the line released and the answer ignored.
type I2C struct {
	mu    sync.Mutex
	d     Dispatcher
	speed uint8 // MsgDelayI2C argument, in 100kHz units
}

var (
	_ i2c.BusCloser = (*I2C)(nil)
	_ drivers.I2C   = (*I2C)(nil)
)

// NewI2C returns a 100kHz bus driving the bridge I²C clock and data slots.
func NewI2C(d Dispatcher) *I2C {
	return &I2C{d: d, speed: 1}
}

func (b *I2C) String() string {
	return "softbus.I2C"
}

// Close implements i2c.BusCloser. The lines are left released.
func (b *I2C) Close() error {
	return nil
}

// SetSpeed implements i2c.Bus. The bridge only distinguishes standard from
// fast mode, anything in between is rounded down.
func (b *I2C) SetSpeed(f physic.Frequency) error {
	if f <= 0 {
		return errors.New("softbus: invalid I²C speed")
	}
	units := f / (100 * physic.KiloHertz)
	if units < 1 {
		units = 1
	}
	if units > 255 {
		units = 255
	}
	b.mu.Lock()
	b.speed = uint8(units)
	b.mu.Unlock()
	return nil
}

// Tx implements i2c.Bus and drivers.I2C for writes only.
func (b *I2C) Tx(addr uint16, w, r []byte) error {
	if len(r) != 0 {
		return ErrReadUnsupported
	}
	if addr > 0x7F {
		return errors.New("softbus: 10-bit addresses are not supported")
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.start()
	b.writeByte(byte(addr << 1))
	for _, v := range w {
		b.writeByte(v)
	}
	b.stop()
	return nil
}

func (b *I2C) delay() {
	b.d.Dispatch(gpiobridge.MsgDelayI2C, b.speed)
}

func (b *I2C) scl(high bool) {
	b.d.Dispatch(gpiobridge.MsgGPIOI2CClock, level(high))
}

func (b *I2C) sda(high bool) {
	b.d.Dispatch(gpiobridge.MsgGPIOI2CData, level(high))
}

func (b *I2C) start() {
	b.sda(true)
	b.scl(true)
	b.delay()
	b.sda(false)
	b.delay()
	b.scl(false)
}

func (b *I2C) stop() {
	b.sda(false)
	b.delay()
	b.scl(true)
	b.delay()
	b.sda(true)
	b.delay()
}

func (b *I2C) writeByte(v byte) {
	for i := 7; i >= 0; i-- {
		b.sda(v&(1<<uint(i)) != 0)
		b.delay()
		b.scl(true)
		b.delay()
		b.scl(false)
	}
	// ACK clock with the data line released.
	b.sda(true)
	b.delay()
	b.scl(true)
	b.delay()
	b.scl(false)
}

func level(high bool) uint8 {
	if high {
		return 1
	}
	return 0
}
