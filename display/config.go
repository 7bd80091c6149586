package display

import "fmt"

// Mode is the electrical interface to the display controller.
type Mode uint8

const (
	ModeI2CSW  Mode = 1 // Software (bit-banged) I²C
	ModeI2CHW  Mode = 2 // Hardware I²C
	ModeSPISW3 Mode = 3 // Software 3-wire SPI, 9-bit words
	ModeSPISW4 Mode = 4 // Software 4-wire SPI with D/C line
	ModeSPIHW4 Mode = 5 // Hardware 4-wire SPI with D/C line
)

var modeNames = map[string]Mode{
	"i2c_sw":      ModeI2CSW,
	"i2c_hw":      ModeI2CHW,
	"spi_sw_3pin": ModeSPISW3,
	"spi_sw_4pin": ModeSPISW4,
	"spi_hw_4pin": ModeSPIHW4,
}

// ParseMode returns the Mode named s, as used by scripts.
func ParseMode(s string) (Mode, bool) {
	m, ok := modeNames[s]
	return m, ok
}

func (m Mode) String() string {
	for name, v := range modeNames {
		if v == m {
			return name
		}
	}
	return fmt.Sprintf("Mode(%d)", uint8(m))
}

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	return m >= ModeI2CSW && m <= ModeSPIHW4
}

// NumPins is the number of pin fields in a Config. Only the first four are
// used, the others are reserved.
const NumPins = 8

// Config is the resolved configuration of one Init call.
//
// Pin usage per mode:
//
//	mode         pin0       pin1      pin2   pin3
//	i2c_sw       I²C clock  I²C data  -      -
//	i2c_hw       -          -         -      -
//	spi_sw_3pin  SPI clock  SPI data  reset  chip-select
//	spi_sw_4pin  SPI clock  SPI data  reset  data/command
//	spi_hw_4pin  -          -         reset  data/command
type Config struct {
	Mode Mode
	Pins [NumPins]int
	W    int // Width in pixels (default: 128)
	H    int // Height in pixels (default: 64)
}

// DefaultConfig is hardware I²C with every pin 0 on a 128x64 panel.
func DefaultConfig() Config {
	return Config{Mode: ModeI2CHW, W: 128, H: 64}
}

// Status is the result of Init as seen by scripts.
type Status int

const (
	StatusOK                 Status = 1
	StatusAlreadyInitialized Status = 2
	StatusOutOfMemory        Status = 3
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusAlreadyInitialized:
		return "already initialized"
	case StatusOutOfMemory:
		return "out of memory"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}
