package softbus

import (
	"fmt"

	"github.com/flavioheleno/mcuscript/gpiobridge"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// Pin is an output line driven through a bridge slot, typically the display
// D/C or reset line.
type Pin struct {
	d    Dispatcher
	slot gpiobridge.Slot
}

var _ gpio.PinOut = (*Pin)(nil)

// NewPin returns the output for slot s.
func NewPin(d Dispatcher, s gpiobridge.Slot) *Pin {
	return &Pin{d: d, slot: s}
}

func (p *Pin) String() string {
	return "softbus." + p.slot.String()
}

// Halt implements conn.Resource.
func (p *Pin) Halt() error {
	return nil
}

// Name implements pin.Pin.
func (p *Pin) Name() string {
	return p.slot.String()
}

// Number implements pin.Pin. The bridge owns the pin number.
func (p *Pin) Number() int {
	return -1
}

// Function implements pin.Pin.
func (p *Pin) Function() string {
	return "Out"
}

// Out implements gpio.PinOut.
func (p *Pin) Out(l gpio.Level) error {
	if p.d.Dispatch(gpiobridge.GPIO(p.slot), level(bool(l))) == 0 {
		return fmt.Errorf("softbus: slot %s has no level message", p.slot)
	}
	return nil
}

// PWM implements gpio.PinOut.
func (p *Pin) PWM(gpio.Duty, physic.Frequency) error {
	return fmt.Errorf("softbus: %s does not support PWM", p.slot)
}
