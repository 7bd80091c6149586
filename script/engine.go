// Package script runs Lua scripts against the display and power facades.
//
// An Engine owns one Lua state and exposes two global tables, disp and pm.
// Power events raised on other goroutines reach pm.on callbacks through the
// message bus, so every Lua call happens on the goroutine driving the Engine.
package script

import (
	"context"
	"errors"
	"runtime"

	"github.com/flavioheleno/mcuscript/display"
	"github.com/flavioheleno/mcuscript/msgbus"
	"github.com/flavioheleno/mcuscript/pm"
	"github.com/sirupsen/logrus"
	lua "github.com/yuin/gopher-lua"
)

// Registry keys of the values pinned while they are in use.
const (
	regDisplay  = "mcuscript.disp"
	regCallback = "mcuscript.pm.on"
)

// Options is the configuration of an Engine.
type Options struct {
	Display *display.Facade    // default: display.New(nil)
	Power   pm.Driver          // optional, the pm table is not installed without it
	Bus     *msgbus.Bus        // default: msgbus.New(msgbus.DefaultSize, nil)
	Logger  logrus.FieldLogger // default: tag "script"
}

// Engine is a Lua state bound to the facades.
//
// It is not safe for concurrent use: DoString, DoFile, Poll and Run must be
// called from a single goroutine.
type Engine struct {
	L    *lua.LState
	disp *display.Facade
	pm   *pm.Facade
	bus  *msgbus.Bus
	log  logrus.FieldLogger

	collect func() // runs on disp.close
}

// New returns an Engine with the disp and pm globals installed.
func New(opts *Options) (*Engine, error) {
	var o Options
	if opts != nil {
		o = *opts
	}
	if o.Logger == nil {
		o.Logger = logrus.WithField("tag", "script")
	}
	if o.Display == nil {
		o.Display = display.New(nil)
	}
	if o.Bus == nil {
		o.Bus = msgbus.New(msgbus.DefaultSize, nil)
	}

	e := &Engine{
		L:    lua.NewState(),
		disp: o.Display,
		bus:  o.Bus,
		log:  o.Logger,

		collect: runtime.GC,
	}
	e.L.SetGlobal("disp", e.dispModule())

	if o.Power != nil {
		f, err := pm.New(&pm.Options{
			Driver: o.Power,
			Bus:    o.Bus,
			Logger: o.Logger.WithField("tag", "pm"),
		})
		if err != nil {
			e.L.Close()
			return nil, err
		}
		e.pm = f
		e.L.SetGlobal("pm", e.pmModule())
	}
	return e, nil
}

// Display returns the display facade.
func (e *Engine) Display() *display.Facade {
	return e.disp
}

// Power returns the pm facade, nil when the Engine has no power driver.
func (e *Engine) Power() *pm.Facade {
	return e.pm
}

// DoString runs a chunk of Lua source.
func (e *Engine) DoString(src string) error {
	return e.L.DoString(src)
}

// DoFile runs the Lua file at path.
func (e *Engine) DoFile(path string) error {
	return e.L.DoFile(path)
}

// Poll runs the pending bus messages and returns how many ran.
func (e *Engine) Poll() int {
	return e.bus.Poll()
}

// Run runs bus messages until ctx is done. Cancellation is not an error.
func (e *Engine) Run(ctx context.Context) error {
	e.L.SetContext(ctx)
	defer e.L.RemoveContext()
	err := e.bus.Run(ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// Close releases the display handle and the Lua state.
func (e *Engine) Close() {
	if e.pm != nil {
		e.pm.On(nil)
	}
	e.disp.Close()
	e.L.Close()
}
