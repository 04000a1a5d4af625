package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmerrifield20/mcptrust/internal/registry/model"
)

// ChallengeCollection is the Storage collection holding ownership challenges.
const ChallengeCollection = "ownership_challenges"

// ErrChallengeNotFound is returned when an ownership challenge is not found.
var ErrChallengeNotFound = errors.New("ownership challenge not found")

// ChallengeRepository persists ownership challenges in a Storage collection,
// keyed by challenge id.
type ChallengeRepository struct {
	store Storage
}

// NewChallengeRepository creates a new ChallengeRepository.
func NewChallengeRepository(store Storage) *ChallengeRepository {
	return &ChallengeRepository{store: store}
}

// Create stores ch under its ChallengeID.
func (r *ChallengeRepository) Create(ctx context.Context, ch *model.OwnershipChallenge) error {
	if ch.ChallengeID == "" {
		return fmt.Errorf("insert ownership challenge: empty id")
	}
	if err := r.store.Set(ctx, ChallengeCollection, ch.ChallengeID, ch); err != nil {
		return fmt.Errorf("insert ownership challenge: %w", err)
	}
	return nil
}

// GetByID returns a single challenge. Expiry is not checked here.
func (r *ChallengeRepository) GetByID(ctx context.Context, id string) (*model.OwnershipChallenge, error) {
	raw, err := r.store.Get(ctx, ChallengeCollection, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrChallengeNotFound
		}
		return nil, fmt.Errorf("get ownership challenge: %w", err)
	}
	ch := &model.OwnershipChallenge{}
	if err := json.Unmarshal(raw, ch); err != nil {
		return nil, fmt.Errorf("decode ownership challenge %s: %w", id, err)
	}
	return ch, nil
}

// Delete removes a challenge. Deleting an already-deleted challenge is a no-op.
func (r *ChallengeRepository) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, ChallengeCollection, id); err != nil {
		return fmt.Errorf("delete ownership challenge: %w", err)
	}
	return nil
}

// DeleteExpired removes every challenge whose expires_at is not after now and
// returns how many were removed. Undecodable entries are removed as well.
func (r *ChallengeRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	all, err := r.store.GetAll(ctx, ChallengeCollection)
	if err != nil {
		return 0, fmt.Errorf("list ownership challenges: %w", err)
	}
	var n int64
	for id, raw := range all {
		var ch model.OwnershipChallenge
		if err := json.Unmarshal(raw, &ch); err == nil && !ch.Expired(now) {
			continue
		}
		if err := r.store.Delete(ctx, ChallengeCollection, id); err != nil {
			return n, fmt.Errorf("delete expired challenge %s: %w", id, err)
		}
		n++
	}
	return n, nil
}
