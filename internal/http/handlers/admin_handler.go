// README: Admin endpoints: manual dispatch re-trigger.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wasil/internal/modules/assignment"
	"wasil/internal/types"
)

type AdminHandler struct {
	engine *assignment.Engine
}

func NewAdminHandler(engine *assignment.Engine) *AdminHandler {
	return &AdminHandler{engine: engine}
}

// Assign re-runs the dispatch engine for a parked order, e.g. after workers
// came back online.
func (h *AdminHandler) Assign(c *gin.Context) {
	if err := h.engine.Assign(c.Request.Context(), types.ID(c.Param("id")), nil); err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"triggered": true})
}
