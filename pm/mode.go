package pm

import "fmt"

// Mode is a sleep mode. Values are the ones scripts see.
type Mode int

const (
	ModeIdle    Mode = 1
	ModeLight   Mode = 2
	ModeDeep    Mode = 3
	ModeStandby Mode = 4 // Hibernate, HIB for scripts
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "IDLE"
	case ModeLight:
		return "LIGHT"
	case ModeDeep:
		return "DEEP"
	case ModeStandby:
		return "HIB"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m >= ModeIdle && m <= ModeStandby
}

// Events raised by drivers through the Hook.
const (
	EventSleep  = 1 // arg: Mode entered
	EventDTimer = 2 // arg: deep timer id
	EventWake   = 3 // arg: wake Reason
)

// Reason is why the system booted.
type Reason int

const (
	ReasonPowerOn Reason = 0 // Power applied or external reset
	ReasonDTimer  Reason = 1 // Woken by a deep timer
	ReasonReset   Reason = 2 // Reset while asleep without a timer wake
)
