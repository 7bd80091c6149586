// Package pm forwards sleep requests to a power Driver and delivers power
// events to a single callback on the engine goroutine.
package pm

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/flavioheleno/mcuscript/msgbus"
	"github.com/sirupsen/logrus"
)

// Driver is the platform power driver.
type Driver interface {
	// Request asks for mode; entering it is up to the driver.
	Request(mode Mode) error
	// DTimerStart arms deep timer id, which fires once after timeout.
	DTimerStart(id int, timeout time.Duration) error
	DTimerStop(id int) error
	// Force enters a sleep mode now and returns the driver status.
	Force(mode Mode) int
	// Check tells whether the last request can be honored, 0 when it can.
	Check() int
	// LastState is the Reason of the current boot.
	LastState() int
}

// Hook is the signature drivers use to raise events. It may be called from
// any goroutine.
type Hook func(event, arg int)

// Notifier is implemented by drivers that raise events.
type Notifier interface {
	SetHook(h Hook)
}

// Callback receives power events on the engine goroutine.
type Callback func(event, arg int)

// ErrNoDriver is returned by New without a driver.
var ErrNoDriver = errors.New("pm: no driver")

// Options is the configuration of a Facade.
type Options struct {
	Driver Driver             // required
	Bus    *msgbus.Bus        // required for event delivery
	Logger logrus.FieldLogger // default: tag "pm"
}

// Facade is the script-facing power management.
//
// Everything except Notify must be called from the engine goroutine.
type Facade struct {
	drv Driver
	bus *msgbus.Bus
	log logrus.FieldLogger

	registered atomic.Bool
	cb         Callback
}

// New returns a Facade and, when the driver is a Notifier, installs
// Facade.Notify as its hook.
func New(opts *Options) (*Facade, error) {
	if opts == nil || opts.Driver == nil {
		return nil, ErrNoDriver
	}
	if opts.Bus == nil {
		return nil, errors.New("pm: no message bus")
	}
	log := opts.Logger
	if log == nil {
		log = logrus.WithField("tag", "pm")
	}
	f := &Facade{drv: opts.Driver, bus: opts.Bus, log: log}
	if n, ok := opts.Driver.(Notifier); ok {
		n.SetHook(f.Notify)
	}
	return f, nil
}

// Request asks for a sleep mode. True only means the driver accepted the
// request, not that the mode is or will be entered.
func (f *Facade) Request(mode Mode) bool {
	if err := f.drv.Request(mode); err != nil {
		f.log.WithError(err).WithField("mode", mode).Debug("request refused")
		return false
	}
	return true
}

// DTimerStart arms deep timer id for timeoutMs milliseconds.
func (f *Facade) DTimerStart(id, timeoutMs int) bool {
	if err := f.drv.DTimerStart(id, time.Duration(timeoutMs)*time.Millisecond); err != nil {
		f.log.WithError(err).WithField("id", id).Debug("dtimer start failed")
		return false
	}
	return true
}

// DTimerStop disarms deep timer id.
func (f *Facade) DTimerStop(id int) {
	if err := f.drv.DTimerStop(id); err != nil {
		f.log.WithError(err).WithField("id", id).Debug("dtimer stop failed")
	}
}

// Force enters mode immediately and returns the driver status.
func (f *Facade) Force(mode Mode) int {
	return f.drv.Force(mode)
}

// Check returns the driver status of the last request.
func (f *Facade) Check() int {
	return f.drv.Check()
}

// LastReason returns the boot reason.
func (f *Facade) LastReason() int {
	return f.drv.LastState()
}

// On replaces the event callback. nil stops delivery, including events
// already queued.
func (f *Facade) On(cb Callback) {
	f.cb = cb
	f.registered.Store(cb != nil)
}

// Notify is the driver Hook. Without a callback the event is dropped;
// otherwise it is queued for the engine goroutine.
func (f *Facade) Notify(event, arg int) {
	if !f.registered.Load() {
		return
	}
	err := f.bus.Put(msgbus.Message{Handler: f.deliver, Event: event, Arg: arg})
	if err != nil {
		f.log.WithError(err).WithFields(logrus.Fields{"event": event, "arg": arg}).Warn("pm event dropped")
	}
}

func (f *Facade) deliver(m msgbus.Message) {
	if f.cb == nil {
		return
	}
	f.cb(m.Event, m.Arg)
}
