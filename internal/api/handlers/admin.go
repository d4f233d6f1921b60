package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/lineage/internal/auth"
	"github.com/your-org/lineage/internal/faces"
	"github.com/your-org/lineage/pkg/dto"
)

type AdminHandler struct {
	reconciler *faces.Reconciler
}

func NewAdminHandler(reconciler *faces.Reconciler) *AdminHandler {
	return &AdminHandler{reconciler: reconciler}
}

// Reconcile re-synchronizes one family's face records against the vector
// index, or every family when no family_id is given.
func (h *AdminHandler) Reconcile(c *gin.Context) {
	var req dto.ReconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.reconciler.ReconcileFamily(c.Request.Context(), auth.GetPrincipal(c), req.FamilyID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ReconcileResponse{
		FamilyID: result.FamilyID,
		Synced:   result.Synced,
		Failed:   result.Failed,
		Skipped:  result.Skipped,
	})
}
