package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/you/gatekeeper/domain"
	"github.com/you/gatekeeper/internal/services"
)

// operatorHeader carries the caller's numeric id for the read-only
// operator API. The gate decides whether that id is privileged.
const operatorHeader = "X-Operator-Id"

// OpsHandler serves the operator endpoints. Everything it exposes is
// read only; mutations go through the bot surface.
type OpsHandler struct {
	admin *services.AdminService
}

// NewOpsHandler creates the handler.
func NewOpsHandler(admin *services.AdminService) *OpsHandler {
	return &OpsHandler{admin: admin}
}

// RequireOperator parses the operator header and stashes the id; the
// per-endpoint service calls still enforce the gate themselves.
func (h *OpsHandler) RequireOperator() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.GetHeader(operatorHeader), 10, 64)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing operator id"})
			return
		}
		c.Set("operator_id", id)
		c.Next()
	}
}

func operatorID(c *gin.Context) int64 {
	return c.GetInt64("operator_id")
}

func (h *OpsHandler) Stats(c *gin.Context) {
	stats, err := h.admin.Stats(c.Request.Context(), operatorID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *OpsHandler) Pending(c *gin.Context) {
	entries, err := h.admin.Pending(c.Request.Context(), operatorID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pending": entries, "count": len(entries)})
}

func (h *OpsHandler) Export(c *gin.Context) {
	doc, err := h.admin.Export(c.Request.Context(), operatorID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *OpsHandler) fail(c *gin.Context, err error) {
	if err == domain.ErrPermissionDenied {
		c.JSON(http.StatusForbidden, gin.H{"error": "operators only"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
