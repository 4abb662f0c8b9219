package engine

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// LoadModulesDir compiles every .lua file in dir and registers it
// under its filename-derived game code. Existing registrations for
// those codes are hot-swapped; a module that fails to compile is
// skipped and reported, it never unregisters the running version.
func LoadModulesDir(registry *Registry, dir, version string, logger *slog.Logger) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read modules dir: %w", err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".lua") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		eng, gameCode, err := NewLuaEngineFromFile(path, version)
		if err != nil {
			logger.Error("game module rejected", "path", path, "error", err)
			continue
		}
		registry.Register(gameCode, eng)
		logger.Info("game module loaded", "game_code", gameCode, "path", path)
		loaded++
	}
	return loaded, nil
}
