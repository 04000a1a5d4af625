package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/mcptrust/internal/identity"
	"github.com/jmerrifield20/mcptrust/internal/registry/model"
	"github.com/jmerrifield20/mcptrust/internal/registry/service"
	"go.uber.org/zap"
)

// msgChallengeNotFound is the fixed client-facing message for unknown and
// expired challenges.
const msgChallengeNotFound = "Challenge not found or expired"

// ownershipChecker answers "does the caller control this domain right now".
// *ownership.Verifier satisfies it.
type ownershipChecker interface {
	VerifyCurrentOwnership(ctx context.Context, domain string) model.VerificationResult
}

// OwnershipHandler serves the challenge, ownership and server-update routes.
type OwnershipHandler struct {
	challenges *service.ChallengeService
	servers    *service.ServerService
	verifier   ownershipChecker
	tokens     *identity.TokenIssuer // nil = auth disabled
	logger     *zap.Logger
}

// NewOwnershipHandler creates an OwnershipHandler. tokens may be nil to run
// without operator authentication.
func NewOwnershipHandler(
	challenges *service.ChallengeService,
	servers *service.ServerService,
	verifier ownershipChecker,
	tokens *identity.TokenIssuer,
	logger *zap.Logger,
) *OwnershipHandler {
	return &OwnershipHandler{
		challenges: challenges,
		servers:    servers,
		verifier:   verifier,
		tokens:     tokens,
		logger:     logger,
	}
}

// requireToken returns the RequireToken middleware when auth is configured,
// or a no-op middleware for development/open mode.
func (h *OwnershipHandler) requireToken(scope string) gin.HandlerFunc {
	if h.tokens == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return identity.RequireToken(h.tokens, scope)
}

// Register mounts the ownership routes on the given router group.
func (h *OwnershipHandler) Register(rg *gin.RouterGroup) {
	challenges := rg.Group("/challenges")
	{
		challenges.POST("", h.requireToken(identity.ScopeChallengesWrite), h.CreateChallenge)
		challenges.GET("/:id", h.GetChallenge)
		challenges.POST("/:id/verify", h.VerifyChallenge)
	}

	rg.GET("/ownership/:domain", h.CheckOwnership)

	servers := rg.Group("/servers")
	{
		servers.POST("/:domain/authorize", h.requireToken(identity.ScopeServersWrite), h.AuthorizeRegistration)
		servers.PATCH("/:domain", h.requireToken(identity.ScopeServersWrite), h.UpdateServer)
	}
}

// CreateChallenge handles POST /challenges.
//
// Request body: {"domain": "example.com", "reason": "ownership_transfer"}
// An omitted reason defaults to "user_request".
func (h *OwnershipHandler) CreateChallenge(c *gin.Context) {
	var req struct {
		Domain string `json:"domain" binding:"required"`
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	reason := model.ChallengeReason(req.Reason)
	if reason == "" {
		reason = model.ReasonUserRequest
	}

	ch, err := h.challenges.CreateOwnershipChallenge(c.Request.Context(), req.Domain, c.ClientIP(), reason)
	if err != nil {
		h.writeError(c, "create challenge", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"challenge":    ch,
		"state":        model.ChallengePending,
		"instructions": service.ChallengeInstructions(ch),
	})
}

// GetChallenge handles GET /challenges/:id.
func (h *OwnershipHandler) GetChallenge(c *gin.Context) {
	ch, err := h.challenges.GetChallenge(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, "get challenge", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"challenge": ch,
		"state":     model.ChallengePending,
	})
}

// VerifyChallenge handles POST /challenges/:id/verify.
func (h *OwnershipHandler) VerifyChallenge(c *gin.Context) {
	res, err := h.challenges.VerifyOwnershipChallenge(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, "verify challenge", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// CheckOwnership handles GET /ownership/:domain. It always answers 200; an
// unverified domain is reported in the body.
func (h *OwnershipHandler) CheckOwnership(c *gin.Context) {
	domain, err := model.NormalizeDomain(c.Param("domain"))
	if err != nil {
		h.writeError(c, "check ownership", err)
		return
	}
	res := h.verifier.VerifyCurrentOwnership(c.Request.Context(), domain)
	c.JSON(http.StatusOK, gin.H{
		"domain":       domain,
		"verification": res,
	})
}

// AuthorizeRegistration handles POST /servers/:domain/authorize.
func (h *OwnershipHandler) AuthorizeRegistration(c *gin.Context) {
	resp, err := h.servers.AuthorizeRegistration(c.Request.Context(), c.Param("domain"), c.ClientIP())
	if err != nil {
		h.writeError(c, "authorize registration", err)
		return
	}
	c.JSON(updateStatus(resp), resp)
}

// UpdateServer handles PATCH /servers/:domain.
//
// Request body: any subset of {"endpoint", "capabilities", "contact_email", "description"}.
func (h *OwnershipHandler) UpdateServer(c *gin.Context) {
	var req model.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.servers.UpdateServer(c.Request.Context(), c.Param("domain"), &req, c.ClientIP())
	if err != nil {
		h.writeError(c, "update server", err)
		return
	}
	c.JSON(updateStatus(resp), resp)
}

// updateStatus maps an UpdateResponse to its HTTP status. A pending
// ownership proof is 428 Precondition Required.
func updateStatus(resp *model.UpdateResponse) int {
	if resp.VerificationRequired {
		return http.StatusPreconditionRequired
	}
	return http.StatusOK
}

// writeError maps service errors to HTTP responses. Unknown errors are
// logged and reported as 500 without detail.
func (h *OwnershipHandler) writeError(c *gin.Context, op string, err error) {
	writeServiceError(c, h.logger, op, err)
}

func writeServiceError(c *gin.Context, logger *zap.Logger, op string, err error) {
	var verr *model.ErrValidation
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Msg})
	case errors.Is(err, service.ErrChallengeNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": msgChallengeNotFound})
	case errors.Is(err, service.ErrServerNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "server not found"})
	case errors.Is(err, service.ErrVerificationFailed):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrDomainAnomaly):
		logger.Warn(op, zap.Error(err))
		c.JSON(http.StatusConflict, gin.H{"error": "domain has conflicting registrations"})
	default:
		logger.Error(op, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": op + " failed"})
	}
}
