// Package gpiobridge implements the GPIO and timing callback used by the
// software display transports.
//
// A transport never touches GPIO directly: it sends a Msg to the Bridge, which
// drives the pin assigned to the matching Slot or waits for the requested
// delay.
package gpiobridge

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// NoPin marks a slot without a pin.
const NoPin = -1

// Lookup resolves a pin number to a GPIO line, nil when unknown.
type Lookup func(n int) gpio.PinIO

// HostLookup resolves pin numbers through the periph pin registry.
func HostLookup(n int) gpio.PinIO {
	return gpioreg.ByName(strconv.Itoa(n))
}

// Options is the configuration of a Bridge.
type Options struct {
	Lookup Lookup             // default: HostLookup
	Clock  clockwork.Clock    // default: real clock
	Logger logrus.FieldLogger // default: tag "gpio"
}

// ErrUnknownPin is returned by Assign when the lookup does not know the pin.
var ErrUnknownPin = errors.New("gpiobridge: unknown pin")

// Bridge maps slots to pins and serves Msg requests.
//
// The slot table is filled once per display setup. Dispatch itself keeps no
// state between calls.
type Bridge struct {
	lookup Lookup
	clock  clockwork.Clock
	log    logrus.FieldLogger

	nums [NumSlots]int
	pins [NumSlots]gpio.PinIO
}

// New returns a Bridge with every slot unassigned.
func New(opts *Options) *Bridge {
	var o Options
	if opts != nil {
		o = *opts
	}
	if o.Lookup == nil {
		o.Lookup = HostLookup
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.Logger == nil {
		o.Logger = logrus.WithField("tag", "gpio")
	}
	b := &Bridge{lookup: o.Lookup, clock: o.Clock, log: o.Logger}
	b.Reset()
	return b
}

// Assign binds pin number n to slot s. NoPin clears the slot.
func (b *Bridge) Assign(s Slot, n int) error {
	if int(s) >= NumSlots {
		return fmt.Errorf("gpiobridge: invalid slot %d", s)
	}
	if n == NoPin {
		b.nums[s], b.pins[s] = NoPin, nil
		return nil
	}
	p := b.lookup(n)
	if p == nil {
		return fmt.Errorf("%w %d for %s", ErrUnknownPin, n, s)
	}
	b.nums[s], b.pins[s] = n, p
	return nil
}

// Pin returns the line bound to slot s, nil if unassigned.
func (b *Bridge) Pin(s Slot) gpio.PinIO {
	if int(s) >= NumSlots {
		return nil
	}
	return b.pins[s]
}

// Number returns the pin number bound to slot s, NoPin if unassigned.
func (b *Bridge) Number(s Slot) int {
	if int(s) >= NumSlots {
		return NoPin
	}
	return b.nums[s]
}

// Reset unassigns every slot.
func (b *Bridge) Reset() {
	for i := range b.nums {
		b.nums[i] = NoPin
		b.pins[i] = nil
	}
}

// Dispatch serves one request. It returns 1 for every handled message, even
// when the GPIO write fails, and 0 for messages it does not implement.
func (b *Bridge) Dispatch(msg Msg, arg uint8) uint8 {
	switch msg {
	case MsgDelayNano, MsgDelay100Nano:
		// No sub-microsecond timer: a single no-op, not wall-clock accurate.
		spin(1)
	case MsgDelay10Micro:
		spin(320)
	case MsgDelayI2C:
		// arg=1 is 100kHz (5µs), arg=4 is 400kHz (1.25µs).
		if arg <= 2 {
			spin(160)
		} else {
			spin(40)
		}
	case MsgDelayMilli:
		b.clock.Sleep(time.Duration(arg) * time.Millisecond)
	case MsgGPIOAndDelayInit:
		b.initPins()
	default:
		s, ok := msg.slot()
		if !ok {
			return 0
		}
		b.set(s, arg != 0)
	}
	return 1
}

// pulledUp are configured as pulled-up outputs on init; the I²C lines keep
// their pull.
var pulledUp = []Slot{
	SlotSPIClock, SlotSPIData, SlotReset, SlotDC, SlotCS,
	SlotD2, SlotD3, SlotD4, SlotD5, SlotD6, SlotD7, SlotE,
}

func (b *Bridge) initPins() {
	for _, s := range pulledUp {
		p := b.pins[s]
		if p == nil {
			continue
		}
		if err := p.In(gpio.PullUp, gpio.NoEdge); err != nil {
			b.log.WithError(err).Debugf("pull-up %s", s)
		}
		b.set(s, true)
	}
	for _, s := range []Slot{SlotI2CData, SlotI2CClock} {
		if b.pins[s] != nil {
			b.set(s, true)
		}
	}
}

func (b *Bridge) set(s Slot, high bool) {
	p := b.pins[s]
	if p == nil {
		return
	}
	if err := p.Out(gpio.Level(high)); err != nil {
		b.log.WithError(err).WithField("pin", b.nums[s]).Debugf("set %s", s)
	}
}

// spin busy-loops n no-ops. The counts are not calibrated to the CPU clock.
//
//go:noinline
func spin(n int) {
	for i := 0; i < n; i++ {
		nop()
	}
}

//go:noinline
func nop() {}
