// Package powersim is a pm.Driver for hosts without power hardware.
//
// It keeps the requested mode, runs deep timers on a clockwork.Clock and
// records sleeps in a retain.Store, so that the next New reports why the
// "device" booted: power-on, deep timer wake, or reset while asleep.
package powersim

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/flavioheleno/mcuscript/pm"
	"github.com/flavioheleno/mcuscript/retain"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// NumTimers is the number of deep timers.
const NumTimers = 4

// Check results.
const (
	CheckOK        = 0
	CheckHeld      = 1
	CheckNoRequest = -1
)

var (
	ErrInvalidMode  = errors.New("powersim: invalid mode")
	ErrInvalidTimer = errors.New("powersim: invalid timer")
)

// Options is the configuration of a Sim.
type Options struct {
	Clock  clockwork.Clock    // default: real clock
	Store  *retain.Store      // optional, state is not retained without it
	Logger logrus.FieldLogger // default: tag "pm"
}

// Sim simulates the power hardware.
type Sim struct {
	clock clockwork.Clock
	store *retain.Store
	log   logrus.FieldLogger

	mu        sync.Mutex
	hook      pm.Hook
	requested pm.Mode
	holds     int
	asleep    bool
	timers    [NumTimers]clockwork.Timer
	gen       [NumTimers]uint64
	rec       retain.Record
	reason    pm.Reason
}

var (
	_ pm.Driver   = (*Sim)(nil)
	_ pm.Notifier = (*Sim)(nil)
)

// New boots the simulation: the retained record gives the boot reason, then
// the record is updated for this boot.
func New(opts *Options) (*Sim, error) {
	var o Options
	if opts != nil {
		o = *opts
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.Logger == nil {
		o.Logger = logrus.WithField("tag", "pm")
	}
	s := &Sim{clock: o.Clock, store: o.Store, log: o.Logger}

	rec := retain.Record{Version: retain.CurrentVersion}
	if s.store != nil {
		var err error
		if rec, err = s.store.Load(); err != nil {
			return nil, fmt.Errorf("powersim: %w", err)
		}
	}
	switch {
	case !rec.Slept:
		s.reason = pm.ReasonPowerOn
	case pm.Reason(rec.Reason) == pm.ReasonDTimer:
		s.reason = pm.ReasonDTimer
	default:
		s.reason = pm.ReasonReset
	}
	rec.BootCount++
	rec.Slept = false
	rec.Mode = 0
	rec.Reason = uint8(s.reason)
	s.rec = rec
	if err := s.save(); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"boot": rec.BootCount, "reason": s.reason}).Debug("power on")
	return s, nil
}

// SetHook implements pm.Notifier.
func (s *Sim) SetHook(h pm.Hook) {
	s.mu.Lock()
	s.hook = h
	s.mu.Unlock()
}

// Request implements pm.Driver.
func (s *Sim) Request(mode pm.Mode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w %d", ErrInvalidMode, int(mode))
	}
	s.mu.Lock()
	s.requested = mode
	s.mu.Unlock()
	return nil
}

// Hold keeps the system awake; Check reports CheckHeld until Release.
func (s *Sim) Hold() {
	s.mu.Lock()
	s.holds++
	s.mu.Unlock()
}

// Release drops a Hold.
func (s *Sim) Release() {
	s.mu.Lock()
	if s.holds > 0 {
		s.holds--
	}
	s.mu.Unlock()
}

// Check implements pm.Driver.
func (s *Sim) Check() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.requested == 0:
		return CheckNoRequest
	case s.holds > 0:
		return CheckHeld
	}
	return CheckOK
}

// Force implements pm.Driver. Only deep sleep and standby can be forced;
// anything else returns -1.
func (s *Sim) Force(mode pm.Mode) int {
	if mode != pm.ModeDeep && mode != pm.ModeStandby {
		return -1
	}
	s.mu.Lock()
	s.asleep = true
	s.rec.Slept = true
	s.rec.Mode = uint8(mode)
	s.rec.Reason = uint8(pm.ReasonReset)
	if err := s.save(); err != nil {
		s.log.WithError(err).Error("retain sleep state")
	}
	hook := s.hook
	s.mu.Unlock()

	s.log.WithField("mode", mode).Info("entering sleep")
	if hook != nil {
		hook(pm.EventSleep, int(mode))
	}
	return 0
}

// DTimerStart implements pm.Driver. Restarting a running timer rearms it.
func (s *Sim) DTimerStart(id int, timeout time.Duration) error {
	if id < 0 || id >= NumTimers {
		return fmt.Errorf("%w %d", ErrInvalidTimer, id)
	}
	if timeout <= 0 {
		return fmt.Errorf("powersim: invalid timeout %v", timeout)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if t := s.timers[id]; t != nil {
		t.Stop()
	}
	s.gen[id]++
	gen := s.gen[id]
	s.timers[id] = s.clock.AfterFunc(timeout, func() { s.fire(id, gen) })
	return nil
}

// DTimerStop implements pm.Driver.
func (s *Sim) DTimerStop(id int) error {
	if id < 0 || id >= NumTimers {
		return fmt.Errorf("%w %d", ErrInvalidTimer, id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if t := s.timers[id]; t != nil {
		t.Stop()
		s.timers[id] = nil
	}
	s.gen[id]++
	return nil
}

// fire runs on the timer goroutine.
func (s *Sim) fire(id int, gen uint64) {
	s.mu.Lock()
	if s.gen[id] != gen {
		// Stopped or rearmed meanwhile.
		s.mu.Unlock()
		return
	}
	s.timers[id] = nil
	woke := s.asleep
	if woke {
		s.asleep = false
		s.rec.Reason = uint8(pm.ReasonDTimer)
		if err := s.save(); err != nil {
			s.log.WithError(err).Error("retain wake reason")
		}
	}
	hook := s.hook
	s.mu.Unlock()

	if hook == nil {
		return
	}
	hook(pm.EventDTimer, id)
	if woke {
		hook(pm.EventWake, int(pm.ReasonDTimer))
	}
}

// LastState implements pm.Driver.
func (s *Sim) LastState() int {
	return int(s.reason)
}

// Asleep reports whether a forced sleep is in progress.
func (s *Sim) Asleep() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.asleep
}

// BootCount is the number of boots seen by the retained record.
func (s *Sim) BootCount() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.BootCount
}

// Close stops every deep timer.
func (s *Sim) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.timers {
		if t != nil {
			t.Stop()
			s.timers[i] = nil
		}
		s.gen[i]++
	}
}

// save writes the record; callers hold s.mu or own s exclusively.
func (s *Sim) save() error {
	if s.store == nil {
		return nil
	}
	if err := s.store.Save(s.rec); err != nil {
		return fmt.Errorf("powersim: %w", err)
	}
	return nil
}
