package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	internaldns "github.com/jmerrifield20/mcptrust/internal/dns"
	"github.com/jmerrifield20/mcptrust/internal/registry/model"
	"github.com/jmerrifield20/mcptrust/internal/registry/repository"
	"github.com/jmerrifield20/mcptrust/internal/trustledger"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// challengeStore is the storage interface required by ChallengeService.
// *repository.ChallengeRepository satisfies this interface.
type challengeStore interface {
	Create(ctx context.Context, ch *model.OwnershipChallenge) error
	GetByID(ctx context.Context, id string) (*model.OwnershipChallenge, error)
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// TXTVerifier answers whether name carries exactly value.
// *dns.Pool satisfies this interface.
type TXTVerifier interface {
	VerifyTXTRecord(ctx context.Context, name, value string) bool
}

// Registry is the server registry collaborator.
// *repository.ServerRepository and *repository.MemoryServerRegistry satisfy it.
type Registry interface {
	GetServersByDomain(ctx context.Context, domain string) ([]*model.RegistrationRecord, error)
	UnregisterServer(ctx context.Context, domain string) error
	UpdateServer(ctx context.Context, domain string, patch model.ServerPatch) error
}

// Challenge lifecycle events passed to the metrics callback.
const (
	EventChallengeCreated  = "created"
	EventChallengeVerified = "verified"
	EventChallengeFailed   = "failed"
	EventChallengeExpired  = "expired"
)

// ChallengeService runs the ownership challenge lifecycle:
// created, pending, then verified or expired.
type ChallengeService struct {
	store    challengeStore
	txt      TXTVerifier
	registry Registry
	inflight singleflight.Group
	now      func() time.Time
	onEvent  func(event string)
	auditor  Auditor
	logger   *zap.Logger
}

// NewChallengeService creates a ChallengeService.
func NewChallengeService(store challengeStore, txt TXTVerifier, registry Registry, logger *zap.Logger) *ChallengeService {
	return &ChallengeService{
		store:    store,
		txt:      txt,
		registry: registry,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger,
	}
}

// SetMetricsRecord configures a callback invoked with each lifecycle event.
func (s *ChallengeService) SetMetricsRecord(fn func(event string)) {
	s.onEvent = fn
}

// SetAuditor records verified challenges and transfers in an audit ledger.
func (s *ChallengeService) SetAuditor(a Auditor) {
	s.auditor = a
}

// SetClock replaces the time source. Intended for tests and tooling.
func (s *ChallengeService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *ChallengeService) record(event string) {
	if s.onEvent != nil {
		s.onEvent(event)
	}
}

// CreateOwnershipChallenge issues and persists a new challenge for domain.
// The caller must publish TXTRecordValue at TXTRecordName before ExpiresAt and
// then call VerifyOwnershipChallenge.
func (s *ChallengeService) CreateOwnershipChallenge(ctx context.Context, domain, challengerIP string, reason model.ChallengeReason) (*model.OwnershipChallenge, error) {
	d, err := model.NormalizeDomain(domain)
	if err != nil {
		return nil, err
	}
	if !reason.Valid() {
		return nil, &model.ErrValidation{Msg: fmt.Sprintf("unknown challenge reason %q", reason)}
	}

	raw, err := internaldns.NewChallenge(d, s.now())
	if err != nil {
		return nil, fmt.Errorf("generate challenge: %w", err)
	}

	ch := &model.OwnershipChallenge{
		ChallengeID:    uuid.New().String(),
		Domain:         raw.Domain,
		ChallengerIP:   strings.TrimSpace(challengerIP),
		TXTRecordName:  raw.TXTHost,
		TXTRecordValue: raw.TXTRecord,
		CreatedAt:      raw.CreatedAt,
		ExpiresAt:      raw.ExpiresAt,
		Reason:         reason,
	}
	if err := s.store.Create(ctx, ch); err != nil {
		return nil, fmt.Errorf("persist challenge: %w", err)
	}

	s.record(EventChallengeCreated)
	s.logger.Info("ownership challenge created",
		zap.String("id", ch.ChallengeID),
		zap.String("domain", ch.Domain),
		zap.String("reason", string(reason)),
		zap.String("challenger_ip", ch.ChallengerIP),
		zap.Time("expires_at", ch.ExpiresAt),
	)
	return ch, nil
}

// GetChallenge returns a pending challenge. Unknown and expired challenges
// both yield ErrChallengeNotFound; an expired one is deleted on the way.
func (s *ChallengeService) GetChallenge(ctx context.Context, id string) (*model.OwnershipChallenge, error) {
	ch, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrChallengeNotFound) {
			return nil, ErrChallengeNotFound
		}
		return nil, fmt.Errorf("get challenge: %w", err)
	}

	if ch.Expired(s.now()) {
		if err := s.store.Delete(ctx, id); err != nil {
			s.logger.Warn("delete expired challenge", zap.String("id", id), zap.Error(err))
		}
		s.record(EventChallengeExpired)
		return nil, ErrChallengeNotFound
	}
	return ch, nil
}

// VerifyOwnershipChallenge checks the challenge's TXT record with the resolver
// pool. On success any existing registration for the domain is removed, the
// challenge is deleted, and the result says whether a transfer happened. On
// failure the challenge is left in place so the caller can retry before expiry.
//
// Concurrent calls for the same id share one verification. The shared run is
// detached from any single caller's cancellation; each caller stops waiting
// when its own ctx is done.
func (s *ChallengeService) VerifyOwnershipChallenge(ctx context.Context, id string) (*model.TransferResult, error) {
	shared := context.WithoutCancel(ctx)
	done := s.inflight.DoChan(id, func() (any, error) {
		return s.verifyChallenge(shared, id)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		if r.Err != nil {
			return nil, r.Err
		}
		res := *r.Val.(*model.TransferResult)
		return &res, nil
	}
}

func (s *ChallengeService) verifyChallenge(ctx context.Context, id string) (*model.TransferResult, error) {
	ch, err := s.GetChallenge(ctx, id)
	if err != nil {
		return nil, err
	}

	if !s.txt.VerifyTXTRecord(ctx, ch.TXTRecordName, ch.TXTRecordValue) {
		s.record(EventChallengeFailed)
		s.logger.Info("ownership challenge not verified",
			zap.String("id", id),
			zap.String("domain", ch.Domain),
		)
		return nil, ErrVerificationFailed
	}

	existing, err := s.registry.GetServersByDomain(ctx, ch.Domain)
	if err != nil {
		return nil, fmt.Errorf("look up existing registration: %w", err)
	}
	transferred := false
	if len(existing) > 0 {
		if len(existing) > 1 {
			s.logger.Warn("domain has more than one registration; removing all on transfer",
				zap.String("domain", ch.Domain),
				zap.Int("count", len(existing)),
			)
		}
		if err := s.registry.UnregisterServer(ctx, ch.Domain); err != nil {
			return nil, fmt.Errorf("unregister previous owner: %w", err)
		}
		transferred = true
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return nil, fmt.Errorf("delete verified challenge: %w", err)
	}

	s.record(EventChallengeVerified)
	action := trustledger.ActionChallengeVerified
	if transferred {
		action = trustledger.ActionOwnershipTransferred
	}
	audit(ctx, s.auditor, s.logger, ch.Domain, action, ch.ChallengerIP, map[string]any{
		"challenge_id": ch.ChallengeID,
		"reason":       ch.Reason,
		"transferred":  transferred,
	})
	s.logger.Info("ownership challenge verified",
		zap.String("id", id),
		zap.String("domain", ch.Domain),
		zap.Bool("transferred", transferred),
	)

	msg := "domain ownership verified"
	if transferred {
		msg = "domain ownership verified; the previous registration was removed and the server must be registered again"
	}
	return &model.TransferResult{
		Verified:    true,
		Domain:      ch.Domain,
		Transferred: transferred,
		Message:     msg,
	}, nil
}

// DeleteExpired removes all challenges that have passed their expiry.
// Safe to call from a background goroutine.
func (s *ChallengeService) DeleteExpired(ctx context.Context) (int64, error) {
	n, err := s.store.DeleteExpired(ctx, s.now())
	if err != nil {
		return n, fmt.Errorf("delete expired challenges: %w", err)
	}
	if n > 0 {
		s.logger.Info("pruned expired ownership challenges", zap.Int64("count", n))
	}
	return n, nil
}
