package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/jmerrifield20/mcptrust/internal/netguard"
	"github.com/jmerrifield20/mcptrust/internal/registry/model"
	"github.com/jmerrifield20/mcptrust/internal/registry/repository"
	"github.com/jmerrifield20/mcptrust/internal/trustledger"
	"go.uber.org/zap"
)

// Input limits for UpdateServer.
const (
	MaxCapabilities  = 100
	MaxDescription   = 1000
	MaxEndpointBytes = 2048
)

// OwnershipVerifier checks the current DNS and HTTP proofs for a domain.
// *ownership.Verifier satisfies this interface.
type OwnershipVerifier interface {
	VerifyCurrentOwnership(ctx context.Context, domain string) model.VerificationResult
}

// challengeCreator opens an ownership challenge. *ChallengeService satisfies it.
type challengeCreator interface {
	CreateOwnershipChallenge(ctx context.Context, domain, challengerIP string, reason model.ChallengeReason) (*model.OwnershipChallenge, error)
}

// ServerService applies registration changes behind the ownership gate.
type ServerService struct {
	registry   Registry
	verifier   OwnershipVerifier
	challenges challengeCreator
	auditor    Auditor
	now        func() time.Time
	logger     *zap.Logger
}

// NewServerService creates a ServerService.
func NewServerService(registry Registry, verifier OwnershipVerifier, challenges challengeCreator, logger *zap.Logger) *ServerService {
	return &ServerService{
		registry:   registry,
		verifier:   verifier,
		challenges: challenges,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger,
	}
}

// SetAuditor records applied updates in an audit ledger.
func (s *ServerService) SetAuditor(a Auditor) {
	s.auditor = a
}

// UpdateServer applies update to the registration for domain. When the change
// is security-sensitive and the current ownership proofs fail, nothing is
// written; the response carries a fresh challenge instead.
func (s *ServerService) UpdateServer(ctx context.Context, domain string, update *model.UpdateRequest, requesterIP string) (*model.UpdateResponse, error) {
	d, err := model.NormalizeDomain(domain)
	if err != nil {
		return nil, err
	}
	if err := validateUpdate(update); err != nil {
		return nil, err
	}

	current, err := loadOne(ctx, s.registry, s.logger, d)
	if err != nil {
		return nil, err
	}

	if update.Empty() {
		return &model.UpdateResponse{Success: true, Server: current, Message: "no changes requested"}, nil
	}

	patch := model.PatchFromUpdate(update)
	var verification *model.VerificationResult

	if RequiresOwnershipVerification(current, update) {
		res := s.verifier.VerifyCurrentOwnership(ctx, d)
		verification = &res
		if !res.Verified {
			ch, err := s.challenges.CreateOwnershipChallenge(ctx, d, requesterIP, model.ReasonUserRequest)
			if err != nil {
				return nil, err
			}
			s.logger.Info("update blocked pending ownership verification",
				zap.String("domain", d),
				zap.String("challenge_id", ch.ChallengeID),
			)
			return &model.UpdateResponse{
				Success:              false,
				VerificationRequired: true,
				Challenge:            ch,
				Verification:         verification,
				Message:              "this change requires proof of domain ownership: " + ChallengeInstructions(ch),
			}, nil
		}
		verified := true
		now := s.now()
		patch.DNSVerified = &verified
		patch.VerifiedAt = &now
	}

	if err := s.registry.UpdateServer(ctx, d, patch); err != nil {
		if errors.Is(err, repository.ErrServerNotFound) {
			return nil, ErrServerNotFound
		}
		return nil, fmt.Errorf("update server: %w", err)
	}

	updated := patch.Apply(*current)
	msg := "server updated"
	event := map[string]any{"fields": update.Fields(), "verified": verification != nil}
	if verification != nil {
		msg = fmt.Sprintf("server updated after ownership verification via %s", verification.Method)
		event["method"] = verification.Method
	}
	audit(ctx, s.auditor, s.logger, d, trustledger.ActionServerUpdated, requesterIP, event)
	s.logger.Info("server updated",
		zap.String("domain", d),
		zap.Bool("verified", verification != nil),
	)
	return &model.UpdateResponse{Success: true, Verification: verification, Server: &updated, Message: msg}, nil
}

// AuthorizeRegistration is the pre-registration gate. If the current proofs
// already establish ownership the response succeeds; otherwise it carries a
// challenge. The reason is ownership_transfer when the domain is already
// registered, since verifying it will remove the existing registration.
func (s *ServerService) AuthorizeRegistration(ctx context.Context, domain, requesterIP string) (*model.UpdateResponse, error) {
	d, err := model.NormalizeDomain(domain)
	if err != nil {
		return nil, err
	}

	res := s.verifier.VerifyCurrentOwnership(ctx, d)
	if res.Verified {
		return &model.UpdateResponse{
			Success:      true,
			Verification: &res,
			Message:      fmt.Sprintf("domain ownership verified via %s", res.Method),
		}, nil
	}

	existing, err := s.registry.GetServersByDomain(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("look up existing registration: %w", err)
	}
	reason := model.ReasonUserRequest
	if len(existing) > 0 {
		reason = model.ReasonOwnershipTransfer
	}

	ch, err := s.challenges.CreateOwnershipChallenge(ctx, d, requesterIP, reason)
	if err != nil {
		return nil, err
	}
	return &model.UpdateResponse{
		Success:              false,
		VerificationRequired: true,
		Challenge:            ch,
		Verification:         &res,
		Message:              "domain ownership not proven: " + ChallengeInstructions(ch),
	}, nil
}

// ChallengeInstructions tells the domain owner what to publish and how to finish.
func ChallengeInstructions(ch *model.OwnershipChallenge) string {
	return fmt.Sprintf("publish a TXT record at %s with value %s, then verify challenge %s before %s",
		ch.TXTRecordName, ch.TXTRecordValue, ch.ChallengeID, ch.ExpiresAt.Format(time.RFC3339))
}

// loadOne returns the single registration for domain. More than one is
// reported as ErrDomainAnomaly rather than picking one.
func loadOne(ctx context.Context, registry Registry, logger *zap.Logger, domain string) (*model.RegistrationRecord, error) {
	recs, err := registry.GetServersByDomain(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("get servers by domain: %w", err)
	}
	switch len(recs) {
	case 0:
		return nil, ErrServerNotFound
	case 1:
		return recs[0], nil
	default:
		logger.Warn("registry returned multiple records for one domain",
			zap.String("domain", domain),
			zap.Int("count", len(recs)),
		)
		return nil, fmt.Errorf("%w: %s has %d", ErrDomainAnomaly, domain, len(recs))
	}
}

// validateUpdate rejects malformed input before any network call is made.
func validateUpdate(u *model.UpdateRequest) error {
	if u == nil {
		return nil
	}
	if u.Endpoint != nil && *u.Endpoint != "" {
		if err := validateEndpoint(*u.Endpoint); err != nil {
			return err
		}
	}
	if u.Capabilities != nil {
		if len(*u.Capabilities) > MaxCapabilities {
			return &model.ErrValidation{Msg: fmt.Sprintf("too many capabilities (max %d)", MaxCapabilities)}
		}
		for _, c := range *u.Capabilities {
			if err := model.ValidateCapability(c); err != nil {
				return &model.ErrValidation{Msg: err.Error()}
			}
		}
	}
	if u.ContactEmail != nil && *u.ContactEmail != "" {
		addr, err := mail.ParseAddress(*u.ContactEmail)
		if err != nil || addr.Address != strings.TrimSpace(*u.ContactEmail) {
			return &model.ErrValidation{Msg: fmt.Sprintf("contact_email %q is not a plain email address", *u.ContactEmail)}
		}
	}
	if u.Description != nil && len(*u.Description) > MaxDescription {
		return &model.ErrValidation{Msg: fmt.Sprintf("description too long (max %d bytes)", MaxDescription)}
	}
	return nil
}

func validateEndpoint(raw string) error {
	if len(raw) > MaxEndpointBytes {
		return &model.ErrValidation{Msg: "endpoint too long"}
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return &model.ErrValidation{Msg: fmt.Sprintf("endpoint %q must be an absolute https URL", raw)}
	}
	if u.User != nil {
		return &model.ErrValidation{Msg: "endpoint must not carry credentials"}
	}
	host := u.Hostname()
	if strings.EqualFold(host, "localhost") || strings.HasSuffix(strings.ToLower(host), ".localhost") {
		return &model.ErrValidation{Msg: "endpoint must not point at localhost"}
	}
	if ip := net.ParseIP(host); ip != nil && netguard.IsDisallowedIP(ip) {
		return &model.ErrValidation{Msg: fmt.Sprintf("endpoint host %s is a private or internal address", host)}
	}
	return nil
}
