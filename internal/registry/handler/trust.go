package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/mcptrust/internal/registry/service"
	"go.uber.org/zap"
)

type trustEvaluator interface {
	Evaluate(ctx context.Context, domain string) (*service.TrustEvaluation, error)
}

// TrustHandler serves trust scores for registered servers.
type TrustHandler struct {
	svc    trustEvaluator
	logger *zap.Logger
}

// NewTrustHandler creates a TrustHandler.
func NewTrustHandler(svc trustEvaluator, logger *zap.Logger) *TrustHandler {
	return &TrustHandler{svc: svc, logger: logger}
}

// Register mounts GET /servers/:domain/trust.
func (h *TrustHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/servers/:domain/trust", h.GetTrust)
}

// GetTrust handles GET /servers/:domain/trust. Every call runs a fresh probe.
func (h *TrustHandler) GetTrust(c *gin.Context) {
	ev, err := h.svc.Evaluate(c.Request.Context(), c.Param("domain"))
	if err != nil {
		writeServiceError(c, h.logger, "evaluate trust", err)
		return
	}
	c.JSON(http.StatusOK, ev)
}
