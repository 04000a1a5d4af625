package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/mcptrust/internal/registry/model"
	"github.com/jmerrifield20/mcptrust/internal/trustledger"
	"go.uber.org/zap"
)

type auditLedger interface {
	Get(ctx context.Context, index int) (*trustledger.Entry, error)
	ForDomain(ctx context.Context, domain string) ([]*trustledger.Entry, error)
	Len(ctx context.Context) (int, error)
	Verify(ctx context.Context) error
	Root(ctx context.Context) (string, error)
}

// AuditHandler serves the ownership audit ledger.
type AuditHandler struct {
	ledger auditLedger
	logger *zap.Logger
}

// NewAuditHandler creates an AuditHandler.
func NewAuditHandler(ledger auditLedger, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{ledger: ledger, logger: logger}
}

// Register mounts the ledger routes and the per-domain history.
func (h *AuditHandler) Register(rg *gin.RouterGroup) {
	l := rg.Group("/ledger")
	{
		l.GET("", h.Overview)
		l.GET("/verify", h.VerifyChain)
		l.GET("/entries/:idx", h.GetEntry)
	}
	rg.GET("/ownership/:domain/history", h.History)
}

// Overview handles GET /ledger: chain length and current root hash.
func (h *AuditHandler) Overview(c *gin.Context) {
	ctx := c.Request.Context()
	n, err := h.ledger.Len(ctx)
	if err != nil {
		writeServiceError(c, h.logger, "ledger overview", err)
		return
	}
	root, err := h.ledger.Root(ctx)
	if err != nil {
		writeServiceError(c, h.logger, "ledger overview", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": n, "root": root})
}

// GetEntry handles GET /ledger/entries/:idx.
func (h *AuditHandler) GetEntry(c *gin.Context) {
	idx, err := strconv.Atoi(c.Param("idx"))
	if err != nil || idx < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "idx must be a non-negative integer"})
		return
	}
	entry, err := h.ledger.Get(c.Request.Context(), idx)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "entry not found"})
		return
	}
	c.JSON(http.StatusOK, entry)
}

// History handles GET /ownership/:domain/history.
func (h *AuditHandler) History(c *gin.Context) {
	domain, err := model.NormalizeDomain(c.Param("domain"))
	if err != nil {
		writeServiceError(c, h.logger, "audit history", err)
		return
	}
	ctx := c.Request.Context()

	entries, err := h.ledger.ForDomain(ctx, domain)
	if err != nil {
		writeServiceError(c, h.logger, "audit history", err)
		return
	}
	root, err := h.ledger.Root(ctx)
	if err != nil {
		writeServiceError(c, h.logger, "audit history", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"domain": domain, "entries": entries, "root": root})
}

// VerifyChain handles GET /ledger/verify. A broken chain is reported in the
// body with 200; only a ledger read failure is a 500.
func (h *AuditHandler) VerifyChain(c *gin.Context) {
	ctx := c.Request.Context()
	n, err := h.ledger.Len(ctx)
	if err != nil {
		writeServiceError(c, h.logger, "audit verify", err)
		return
	}
	root, err := h.ledger.Root(ctx)
	if err != nil {
		writeServiceError(c, h.logger, "audit verify", err)
		return
	}

	resp := gin.H{"valid": true, "length": n, "root": root}
	if err := h.ledger.Verify(ctx); err != nil {
		h.logger.Warn("ledger integrity check failed", zap.Error(err))
		resp["valid"] = false
		resp["error"] = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}
