package handler

import (
	"log/slog"
	"net/http"

	"github.com/stakehouse/rgs/internal/domain"
	"github.com/stakehouse/rgs/internal/engine"
)

// EngineHandler handles game catalogue and engine management
// endpoints.
type EngineHandler struct {
	registry   *engine.Registry
	modulesDir string
	version    string
	logger     *slog.Logger
}

// NewEngineHandler creates a new EngineHandler. modulesDir may be
// empty when no scripted engines are deployed.
func NewEngineHandler(registry *engine.Registry, modulesDir, version string, logger *slog.Logger) *EngineHandler {
	return &EngineHandler{registry: registry, modulesDir: modulesDir, version: version, logger: logger}
}

// ListGames handles GET /games.
func (h *EngineHandler) ListGames(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"games": h.registry.GameCodes(),
	})
}

// Reload handles POST /admin/engines/reload (operator realm): recompiles
// the module directory and hot-swaps the registry. In-flight rounds
// keep the adapter they resolved.
func (h *EngineHandler) Reload(w http.ResponseWriter, r *http.Request) {
	if h.modulesDir == "" {
		RespondError(w, domain.ErrValidation("no modules directory configured"))
		return
	}

	loaded, err := engine.LoadModulesDir(h.registry, h.modulesDir, h.version, h.logger)
	if err != nil {
		RespondError(w, domain.ErrInternal("reload engines", err))
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"loaded": loaded,
		"games":  h.registry.GameCodes(),
	})
}
