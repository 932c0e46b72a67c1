package breakpoint

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// DefaultLuaTimeout bounds a single parse call.
const DefaultLuaTimeout = 2 * time.Second

// ErrParserClosed is returned when a closed LuaParser is used.
var ErrParserClosed = errors.New("lua parser is closed")

// LuaParser parses breakpoint listings with a user supplied Lua script.
//
// The script must define a global function
//
//	function parse(text) return { {number=1, position="x.c:3", ...}, ... } end
//
// Recognized entry keys: number, kind, disposition, enabled, address,
// position, condition, ignore, hits, mode, commands.
//
// The Lua state runs with only the base, table, string and math libraries.
type LuaParser struct {
	mu      sync.Mutex
	L       *lua.LState
	timeout time.Duration
	closed  bool
}

// NewLuaParser compiles script into a parser.
func NewLuaParser(script string) (*LuaParser, error) {
	L := lua.NewState(lua.Options{
		SkipOpenLibs: true,
	})
	openSafeLibraries(L)

	if err := L.DoString(script); err != nil {
		L.Close()
		return nil, fmt.Errorf("load parser script: %w", err)
	}
	if fn := L.GetGlobal("parse"); fn.Type() != lua.LTFunction {
		L.Close()
		return nil, errors.New("parser script does not define function parse(text)")
	}

	return &LuaParser{
		L:       L,
		timeout: DefaultLuaTimeout,
	}, nil
}

// NewLuaParserFile loads a parser script from path.
func NewLuaParserFile(path string) (*LuaParser, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read parser script %s: %w", path, err)
	}
	return NewLuaParser(string(data))
}

// openSafeLibraries opens only the libraries a text parser needs.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring"} {
		L.SetGlobal(name, lua.LNil)
	}
}

// Parse implements Parser.
func (p *LuaParser) Parse(text string) ([]Info, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrParserClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	p.L.SetContext(ctx)
	defer p.L.RemoveContext()

	err := p.L.CallByParam(lua.P{
		Fn:      p.L.GetGlobal("parse"),
		NRet:    1,
		Protect: true,
	}, lua.LString(text))
	if err != nil {
		return nil, fmt.Errorf("lua parse: %w", err)
	}

	ret := p.L.Get(-1)
	p.L.Pop(1)

	tbl, ok := ret.(*lua.LTable)
	if !ok {
		if ret == lua.LNil {
			return nil, nil
		}
		return nil, fmt.Errorf("lua parse returned %s, expected table", ret.Type())
	}

	result := make([]Info, 0, tbl.Len())
	for i := 1; i <= tbl.Len(); i++ {
		entry, ok := tbl.RawGetInt(i).(*lua.LTable)
		if !ok {
			return nil, fmt.Errorf("lua parse: entry %d is not a table", i)
		}
		info, err := infoFromTable(entry)
		if err != nil {
			return nil, fmt.Errorf("lua parse: entry %d: %w", i, err)
		}
		result = append(result, info)
	}

	return result, nil
}

// Close releases the Lua state.
func (p *LuaParser) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	p.L.Close()
	return nil
}

func infoFromTable(t *lua.LTable) (Info, error) {
	info := Info{
		Number:   int(lua.LVAsNumber(t.RawGetString("number"))),
		Address:  luaString(t, "address"),
		Position: luaString(t, "position"),

		Condition:   luaString(t, "condition"),
		IgnoreCount: int(lua.LVAsNumber(t.RawGetString("ignore"))),
		HitCount:    int(lua.LVAsNumber(t.RawGetString("hits"))),
		Disposition: ParseDisposition(luaString(t, "disposition")),
		Enabled:     true,
	}

	if v := t.RawGetString("enabled"); v != lua.LNil {
		info.Enabled = lua.LVAsBool(v)
	}

	switch luaString(t, "kind") {
	case "", "breakpoint":
		info.Kind = KindBreakpoint
	case "watchpoint":
		info.Kind = KindWatchpoint
		mode, err := ParseWatchMode(luaString(t, "mode"))
		if err != nil {
			return Info{}, err
		}
		info.WatchMode = mode
	case "tracepoint":
		info.Kind = KindTracepoint
	case "actionpoint":
		info.Kind = KindActionpoint
	default:
		return Info{}, fmt.Errorf("unknown kind %q", luaString(t, "kind"))
	}

	if cmds, ok := t.RawGetString("commands").(*lua.LTable); ok {
		for i := 1; i <= cmds.Len(); i++ {
			info.Commands = append(info.Commands, lua.LVAsString(cmds.RawGetInt(i)))
		}
	}

	return info, nil
}

func luaString(t *lua.LTable, key string) string {
	v := t.RawGetString(key)
	if v == lua.LNil {
		return ""
	}
	return lua.LVAsString(v)
}
