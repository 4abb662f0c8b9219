package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Shopify/go-lua"
	"github.com/stakehouse/rgs/internal/domain"
)

// luaEntryPoint is the global function every engine module must define:
//
//	function process(public_state, private_state, command) -> result
//
// All four values are JSON strings; modules use the installed
// json_decode and json_encode globals to cross the string boundary.
// The module runs with no os, io, or network libraries, so the only
// way in or out is this call.
const luaEntryPoint = "process"

// defaultPoolSize bounds how many Lua states one engine keeps warm.
const defaultPoolSize = 8

// LuaEngine runs a verified Lua game module inside an isolated VM.
// Each invocation uses a pooled state that was initialized once from
// the module source; a trap or panic inside the VM surfaces as
// ENGINE_FAULTED, never as a process crash.
type LuaEngine struct {
	info   domain.EngineInfo
	source string
	pool   chan *lua.State
}

// NewLuaEngine compiles the module source once to verify it loads and
// defines the entry point, then keeps a pool of ready states.
func NewLuaEngine(info domain.EngineInfo, source []byte) (*LuaEngine, error) {
	e := &LuaEngine{
		info:   info,
		source: string(source),
		pool:   make(chan *lua.State, defaultPoolSize),
	}

	l, err := e.newState()
	if err != nil {
		return nil, fmt.Errorf("load engine module %s: %w", info.Name, err)
	}
	e.pool <- l

	return e, nil
}

// NewLuaEngineFromFile loads a module from disk. The game code is the
// file name without extension.
func NewLuaEngineFromFile(path, version string) (*LuaEngine, string, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read engine module: %w", err)
	}
	gameCode := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if err := domain.ValidateGameCode(gameCode); err != nil {
		return nil, "", err
	}
	e, err := NewLuaEngine(domain.EngineInfo{Name: gameCode, Version: version}, source)
	if err != nil {
		return nil, "", err
	}
	return e, gameCode, nil
}

// Info implements Adapter.
func (e *LuaEngine) Info() domain.EngineInfo { return e.info }

// ProcessCommand implements Adapter.
func (e *LuaEngine) ProcessCommand(ctx context.Context, publicState, privateState json.RawMessage, cmd domain.GameActionCommand) (*domain.CommandProcessingResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.ErrEngineUnreachable(e.info.Name, err)
	}

	cmdJSON, err := json.Marshal(cmd)
	if err != nil {
		return nil, domain.ErrInternal("marshal engine command", err)
	}

	l, err := e.acquire()
	if err != nil {
		return nil, domain.ErrEngineFaulted(e.info.Name, err)
	}

	raw, err := e.invoke(l, publicState, privateState, cmdJSON)
	if err != nil {
		// A faulted state may hold arbitrary garbage; drop it rather
		// than return it to the pool.
		return nil, domain.ErrEngineFaulted(e.info.Name, err)
	}
	e.release(l)

	var result domain.CommandProcessingResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, domain.ErrEngineFaulted(e.info.Name, fmt.Errorf("module returned malformed result: %w", err))
	}
	if result.Win.IsNegative() {
		return nil, domain.ErrEngineFaulted(e.info.Name, fmt.Errorf("module returned negative win %s", result.Win))
	}
	return &result, nil
}

// invoke calls the module entry point on one state. Panics inside the
// VM are recovered and reported as errors.
func (e *LuaEngine) invoke(l *lua.State, publicState, privateState, cmdJSON []byte) (raw []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua vm panic: %v", r)
		}
	}()

	l.Global(luaEntryPoint)
	l.PushString(string(publicState))
	l.PushString(string(privateState))
	l.PushString(string(cmdJSON))

	if err := l.ProtectedCall(3, 1, 0); err != nil {
		return nil, fmt.Errorf("module trap: %w", err)
	}

	out, ok := l.ToString(-1)
	l.Pop(1)
	if !ok {
		return nil, fmt.Errorf("module returned non-string result")
	}
	return []byte(out), nil
}

// newState builds a fresh VM: base, math, string, and table libraries
// only. No os, io, or package loading is exposed to the module.
func (e *LuaEngine) newState() (*lua.State, error) {
	l := lua.NewState()

	for _, lib := range []struct {
		name string
		open lua.Function
	}{
		{"_G", lua.BaseOpen},
		{"math", lua.MathOpen},
		{"string", lua.StringOpen},
		{"table", lua.TableOpen},
	} {
		lua.Require(l, lib.name, lib.open, true)
		l.Pop(1)
	}
	registerJSON(l)

	if err := lua.LoadString(l, e.source); err != nil {
		return nil, fmt.Errorf("compile module: %w", err)
	}
	if err := l.ProtectedCall(0, 0, 0); err != nil {
		return nil, fmt.Errorf("run module chunk: %w", err)
	}

	l.Global(luaEntryPoint)
	isFn := l.IsFunction(-1)
	l.Pop(1)
	if !isFn {
		return nil, fmt.Errorf("module does not define %s()", luaEntryPoint)
	}
	return l, nil
}

func (e *LuaEngine) acquire() (*lua.State, error) {
	select {
	case l := <-e.pool:
		return l, nil
	default:
		return e.newState()
	}
}

func (e *LuaEngine) release(l *lua.State) {
	select {
	case e.pool <- l:
	default:
	}
}
