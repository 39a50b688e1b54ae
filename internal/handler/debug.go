package handler

import (
	"net/http"

	"github.com/nafis/library-server/internal/cache"
)

// DebugHandler exposes internals that help during development, like the
// cache state behind the /api/debug/cache view.
type DebugHandler struct {
	cache *cache.Cache
}

func NewDebugHandler(c *cache.Cache) *DebugHandler {
	return &DebugHandler{cache: c}
}

// HandleCacheStats reports per-key cache state (fresh or stale, effective
// TTL, pending override revert).
//
// HTTP: GET /api/debug/cache
func (h *DebugHandler) HandleCacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cache.Stats())
}
