package config

import (
	"encoding/json"
	"errors"
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

var ErrNoLuaConfig = errors.New("lua script neither returned nor defined a config table")

// LoadLua runs a Lua script and loads the table it returns, or the global
// named config when it returns nothing. Only the base, math, string and
// table libraries are available, so a script can compute values but not
// touch the filesystem.
//
//	local tick = 100
//	return {
//	  tick_period_us = tick,
//	  channels = { { id = 0, frequency = 60, amplitude = 4095 } },
//	  acquisition = { { id = 0, signal_frequency = 60 } },
//	}
func LoadLua(src string) (*Config, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()

	for _, lib := range []struct {
		name string
		open lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.MathLibName, lua.OpenMath},
		{lua.StringLibName, lua.OpenString},
		{lua.TabLibName, lua.OpenTable},
	} {
		if err := L.CallByParam(lua.P{Fn: L.NewFunction(lib.open), NRet: 0, Protect: true}, lua.LString(lib.name)); err != nil {
			return nil, fmt.Errorf("lua: open %s: %w", lib.name, err)
		}
	}

	top := L.GetTop()
	if err := L.DoString(src); err != nil {
		return nil, fmt.Errorf("lua: %w", err)
	}

	var table *lua.LTable
	if L.GetTop() > top {
		table, _ = L.Get(-1).(*lua.LTable)
	}
	if table == nil {
		table, _ = L.GetGlobal("config").(*lua.LTable)
	}
	if table == nil {
		return nil, ErrNoLuaConfig
	}

	data, err := json.Marshal(luaToGo(table))
	if err != nil {
		return nil, fmt.Errorf("lua: encode config: %w", err)
	}
	return LoadConfig(data)
}

// luaToGo converts a Lua value into the equivalent JSON-compatible Go value.
// Tables with a non-empty array part become slices; all others become maps
// keyed by string.
func luaToGo(v lua.LValue) any {
	switch val := v.(type) {
	case lua.LBool:
		return bool(val)
	case lua.LNumber:
		return float64(val)
	case lua.LString:
		return string(val)
	case *lua.LTable:
		if n := val.MaxN(); n > 0 {
			out := make([]any, 0, n)
			for i := 1; i <= n; i++ {
				out = append(out, luaToGo(val.RawGetInt(i)))
			}
			return out
		}
		out := make(map[string]any)
		val.ForEach(func(k, v lua.LValue) {
			out[k.String()] = luaToGo(v)
		})
		return out
	}
	return nil
}
