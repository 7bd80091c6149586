package script

import (
	"github.com/flavioheleno/mcuscript/display"
	lua "github.com/yuin/gopher-lua"
)

func (e *Engine) dispModule() *lua.LTable {
	mod := e.L.NewTable()
	e.L.SetFuncs(mod, map[string]lua.LGFunction{
		"init":    e.dispInit,
		"close":   e.dispClose,
		"clear":   e.dispClear,
		"update":  e.dispUpdate,
		"drawStr": e.dispDrawStr,
	})
	return mod
}

// disp.init([config]) returns 1 on success, 2 when already initialized, 3
// when out of memory, and nothing when the panel could not be set up.
func (e *Engine) dispInit(L *lua.LState) int {
	tb, _ := L.Get(1).(*lua.LTable)
	cfg := parseConfig(tb)
	st, err := e.disp.Init(cfg)
	if err != nil {
		return 0
	}
	if st == display.StatusOK {
		ud := L.NewUserData()
		ud.Value = e.disp
		L.G.Registry.RawSetString(regDisplay, ud)
	}
	L.Push(lua.LNumber(st))
	return 1
}

// disp.close() drops the registry pin and runs a collection.
func (e *Engine) dispClose(L *lua.LState) int {
	L.G.Registry.RawSetString(regDisplay, lua.LNil)
	e.collect()
	e.disp.Close()
	return 0
}

// disp.clear()
func (e *Engine) dispClear(L *lua.LState) int {
	e.disp.Clear()
	return 0
}

// disp.update()
func (e *Engine) dispUpdate(L *lua.LState) int {
	e.disp.Update()
	return 0
}

// disp.drawStr(text, x, y). Arguments are not checked before init.
func (e *Engine) dispDrawStr(L *lua.LState) int {
	if !e.disp.Initialized() {
		return 0
	}
	text := L.CheckString(1)
	x := L.CheckInt(2)
	y := L.CheckInt(3)
	e.disp.DrawStr(text, x, y)
	return 0
}
