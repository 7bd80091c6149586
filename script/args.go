package script

import (
	"fmt"
	"math"

	"github.com/flavioheleno/mcuscript/display"
	lua "github.com/yuin/gopher-lua"
)

// scriptPins is the number of pinN fields read from a config table.
const scriptPins = 4

// parseConfig reads the optional disp.init table into a Config.
// Unknown fields are ignored and malformed values keep their default.
func parseConfig(tb *lua.LTable) display.Config {
	cfg := display.DefaultConfig()
	if tb == nil {
		return cfg
	}

	if s, ok := tb.RawGetString("mode").(lua.LString); ok {
		if m, ok := display.ParseMode(string(s)); ok {
			cfg.Mode = m
		}
	}
	for i := 0; i < scriptPins; i++ {
		if n, ok := integer(tb.RawGetString(fmt.Sprintf("pin%d", i))); ok {
			cfg.Pins[i] = n
		}
	}
	if n, ok := integer(tb.RawGetString("width")); ok && n > 0 {
		cfg.W = n
	}
	if n, ok := integer(tb.RawGetString("height")); ok && n > 0 {
		cfg.H = n
	}
	return cfg
}

// integer returns v as an int when it is a number without a fraction.
func integer(v lua.LValue) (int, bool) {
	n, ok := v.(lua.LNumber)
	if !ok {
		return 0, false
	}
	f := float64(n)
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(f), true
}
