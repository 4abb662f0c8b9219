// Package engine defines the command-execution capability game engines
// implement, and the registry that resolves a game code to its
// configured adapter. Two adapter variants exist: a sandboxed Lua
// module run in-process and a remote engine service reached over HTTP.
package engine

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/stakehouse/rgs/internal/domain"
)

// Adapter executes game commands. Implementations must not retry on
// their own: a hidden retry could double-execute a wager's outcome.
// The orchestrator decides when a retry is safe.
type Adapter interface {
	ProcessCommand(ctx context.Context, publicState, privateState json.RawMessage, cmd domain.GameActionCommand) (*domain.CommandProcessingResult, error)
	Info() domain.EngineInfo
}

// Registry maps game codes to adapters. Swapping an adapter is atomic
// from the caller's perspective: in-flight invocations hold their own
// reference to the old adapter and complete normally, new resolutions
// see the replacement.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register installs or replaces the adapter for a game code.
func (r *Registry) Register(gameCode string, a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[gameCode] = a
}

// Deregister removes the adapter for a game code.
func (r *Registry) Deregister(gameCode string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.adapters, gameCode)
}

// Resolve returns the adapter for a game code.
func (r *Registry) Resolve(gameCode string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.adapters[gameCode]
	if !ok {
		return nil, domain.ErrUnknownGame(gameCode)
	}
	return a, nil
}

// GameCodes lists the registered game codes.
func (r *Registry) GameCodes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	codes := make([]string, 0, len(r.adapters))
	for code := range r.adapters {
		codes = append(codes, code)
	}
	return codes
}
