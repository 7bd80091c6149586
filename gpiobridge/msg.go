package gpiobridge

import "fmt"

// Msg is a request sent by a display transport to the bridge.
//
// Values follow the u8x8 message numbering so that traces can be compared
// with other u8x8 based firmware.
type Msg uint8

// Delay and initialization messages.
const (
	MsgGPIOAndDelayInit Msg = 40 // Configure every assigned pin
	MsgDelayMilli       Msg = 41 // Sleep arg milliseconds
	MsgDelay10Micro     Msg = 42 // Spin roughly 10µs
	MsgDelay100Nano     Msg = 43 // Spin a single no-op
	MsgDelayNano        Msg = 44 // Spin a single no-op
	MsgDelayI2C         Msg = 45 // Half I²C clock period, arg is the speed in 100kHz units
)

// Slot names a pin line of the display interface.
type Slot uint8

// Slots. SPI clock and data share the D0 and D1 lines.
const (
	SlotD0 Slot = iota
	SlotD1
	SlotD2
	SlotD3
	SlotD4
	SlotD5
	SlotD6
	SlotD7
	SlotE
	SlotCS
	SlotDC
	SlotReset
	SlotI2CClock
	SlotI2CData
	SlotCS1
	SlotCS2

	NumSlots int = iota

	SlotSPIClock = SlotD0
	SlotSPIData  = SlotD1
)

var slotNames = [...]string{
	"D0", "D1", "D2", "D3", "D4", "D5", "D6", "D7",
	"E", "CS", "DC", "RESET", "I2C_CLOCK", "I2C_DATA", "CS1", "CS2",
}

func (s Slot) String() string {
	if int(s) < len(slotNames) {
		return slotNames[s]
	}
	return fmt.Sprintf("Slot(%d)", uint8(s))
}

// msgGPIOBase is the message number of the first GPIO level message.
const msgGPIOBase = 64

// GPIO level messages, one per line: arg != 0 drives the line high.
const (
	MsgGPIOD0       = Msg(msgGPIOBase + SlotD0)
	MsgGPIOD1       = Msg(msgGPIOBase + SlotD1)
	MsgGPIOD2       = Msg(msgGPIOBase + SlotD2)
	MsgGPIOD3       = Msg(msgGPIOBase + SlotD3)
	MsgGPIOD4       = Msg(msgGPIOBase + SlotD4)
	MsgGPIOD5       = Msg(msgGPIOBase + SlotD5)
	MsgGPIOD6       = Msg(msgGPIOBase + SlotD6)
	MsgGPIOD7       = Msg(msgGPIOBase + SlotD7)
	MsgGPIOE        = Msg(msgGPIOBase + SlotE)
	MsgGPIOCS       = Msg(msgGPIOBase + SlotCS)
	MsgGPIODC       = Msg(msgGPIOBase + SlotDC)
	MsgGPIOReset    = Msg(msgGPIOBase + SlotReset)
	MsgGPIOI2CClock = Msg(msgGPIOBase + SlotI2CClock)
	MsgGPIOI2CData  = Msg(msgGPIOBase + SlotI2CData)

	MsgGPIOSPIClock = MsgGPIOD0
	MsgGPIOSPIData  = MsgGPIOD1
)

// GPIO returns the level message for slot s.
func GPIO(s Slot) Msg {
	return Msg(msgGPIOBase + s)
}

// slot returns the slot driven by a GPIO level message.
// CS1 and CS2 have slots but no level message is handled for them.
func (m Msg) slot() (Slot, bool) {
	if m < MsgGPIOD0 || m > MsgGPIOI2CData {
		return 0, false
	}
	return Slot(m - msgGPIOBase), true
}

func (m Msg) String() string {
	switch m {
	case MsgGPIOAndDelayInit:
		return "GPIO_AND_DELAY_INIT"
	case MsgDelayMilli:
		return "DELAY_MILLI"
	case MsgDelay10Micro:
		return "DELAY_10MICRO"
	case MsgDelay100Nano:
		return "DELAY_100NANO"
	case MsgDelayNano:
		return "DELAY_NANO"
	case MsgDelayI2C:
		return "DELAY_I2C"
	}
	if s, ok := m.slot(); ok {
		return "GPIO_" + s.String()
	}
	return fmt.Sprintf("Msg(%d)", uint8(m))
}
