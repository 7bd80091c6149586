package script

import (
	"github.com/flavioheleno/mcuscript/pm"
	"github.com/sirupsen/logrus"
	lua "github.com/yuin/gopher-lua"
)

func (e *Engine) pmModule() *lua.LTable {
	mod := e.L.NewTable()
	e.L.SetFuncs(mod, map[string]lua.LGFunction{
		"request":     e.pmRequest,
		"dtimerStart": e.pmDTimerStart,
		"dtimerStop":  e.pmDTimerStop,
		"on":          e.pmOn,
		"force":       e.pmForce,
		"check":       e.pmCheck,
		"lastReson":   e.pmLastReason,
	})
	mod.RawSetString("IDLE", lua.LNumber(pm.ModeIdle))
	mod.RawSetString("LIGHT", lua.LNumber(pm.ModeLight))
	mod.RawSetString("DEEP", lua.LNumber(pm.ModeDeep))
	mod.RawSetString("HIB", lua.LNumber(pm.ModeStandby))
	return mod
}

// pm.request(mode) returns whether the driver accepted the request.
func (e *Engine) pmRequest(L *lua.LState) int {
	L.Push(lua.LBool(e.pm.Request(pm.Mode(L.CheckInt(1)))))
	return 1
}

// pm.dtimerStart(id, ms)
func (e *Engine) pmDTimerStart(L *lua.LState) int {
	id := L.CheckInt(1)
	ms := L.CheckInt(2)
	L.Push(lua.LBool(e.pm.DTimerStart(id, ms)))
	return 1
}

// pm.dtimerStop(id)
func (e *Engine) pmDTimerStop(L *lua.LState) int {
	e.pm.DTimerStop(L.CheckInt(1))
	return 0
}

// pm.on(fn) replaces the event callback; any other value removes it.
func (e *Engine) pmOn(L *lua.LState) int {
	fn, ok := L.Get(1).(*lua.LFunction)
	if !ok {
		L.G.Registry.RawSetString(regCallback, lua.LNil)
		e.pm.On(nil)
		return 0
	}
	L.G.Registry.RawSetString(regCallback, fn)
	e.pm.On(func(event, arg int) {
		e.call(fn, event, arg)
	})
	return 0
}

// call runs a pm callback on the engine goroutine. Script errors are logged.
func (e *Engine) call(fn *lua.LFunction, event, arg int) {
	err := e.L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, lua.LNumber(event), lua.LNumber(arg))
	if err != nil {
		e.log.WithError(err).WithFields(logrus.Fields{"event": event, "arg": arg}).Warn("pm callback failed")
	}
}

// pm.force(mode)
func (e *Engine) pmForce(L *lua.LState) int {
	L.Push(lua.LNumber(e.pm.Force(pm.Mode(L.CheckInt(1)))))
	return 1
}

// pm.check()
func (e *Engine) pmCheck(L *lua.LState) int {
	L.Push(lua.LNumber(e.pm.Check()))
	return 1
}

// pm.lastReson()
func (e *Engine) pmLastReason(L *lua.LState) int {
	L.Push(lua.LNumber(e.pm.LastReason()))
	return 1
}
