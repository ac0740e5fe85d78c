package service

import (
	"context"
	"log"

	"github.com/dvoengpt-sudo/ubm-bot/internal/model"
)

// ReferralStore is the slice of the repository the crediting engine needs.
// *repository.Repository implements it.
type ReferralStore interface {
	ApplyReferral(ctx context.Context, referrerID, referredID int64, bonus float64) (bool, error)
	StagePendingClaim(ctx context.Context, referredID, referrerID int64) error
	TakePendingClaim(ctx context.Context, referredID int64) (int64, bool, error)
}

// Notifier interface for sending notifications (implemented by telegram.Bot)
type Notifier interface {
	NotifyReferralApplied(referrerID, referredID int64)
	NotifyAutoCheckCredited(userID int64)
}

// ReferralService decides whether a referral claim is applied, deferred or
// rejected. All duplicate prevention rides on the ledger's unique constraint
// inside ApplyReferral; everything above it is advisory.
type ReferralService struct {
	store    ReferralStore
	gate     *SubscriptionGate
	bonus    float64
	notifier Notifier
}

func NewReferralService(store ReferralStore, gate *SubscriptionGate, bonus float64) *ReferralService {
	return &ReferralService{
		store: store,
		gate:  gate,
		bonus: bonus,
	}
}

// SetNotifier sets the notifier for sending notifications
func (s *ReferralService) SetNotifier(notifier Notifier) {
	s.notifier = notifier
}

// AttemptCredit applies the bonus for referrer -> referred exactly once.
// Self-referrals never write anything. Racing or repeated calls for the same
// referred user: one observes CreditApplied, the rest CreditAlreadyCredited.
func (s *ReferralService) AttemptCredit(ctx context.Context, referrerID, referredID int64) (model.CreditOutcome, error) {
	if referrerID == referredID {
		return model.CreditSelfReferral, nil
	}

	created, err := s.store.ApplyReferral(ctx, referrerID, referredID, s.bonus)
	if err != nil {
		return "", err
	}
	if !created {
		return model.CreditAlreadyCredited, nil
	}

	log.Printf("Referral credited: %d -> %d (+%.2f)", referrerID, referredID, s.bonus)
	if s.notifier != nil {
		s.notifier.NotifyReferralApplied(referrerID, referredID)
	}
	return model.CreditApplied, nil
}

// HandleIncomingClaim processes a claim arriving with first contact. The
// gate is consulted before any transaction; a blocked claim is staged
// (last write wins) and resolved later by ResolveClaim.
func (s *ReferralService) HandleIncomingClaim(ctx context.Context, referrerID, referredID int64) (model.ClaimOutcome, error) {
	if referrerID == referredID {
		return model.ClaimRejected, nil
	}

	if !s.gate.IsSubscribedToAll(ctx, referredID) {
		if err := s.store.StagePendingClaim(ctx, referredID, referrerID); err != nil {
			return "", err
		}
		return model.ClaimDeferred, nil
	}

	outcome, err := s.AttemptCredit(ctx, referrerID, referredID)
	if err != nil {
		return "", err
	}
	switch outcome {
	case model.CreditApplied:
		return model.ClaimAppliedNow, nil
	case model.CreditAlreadyCredited:
		return model.ClaimAlreadyDone, nil
	default:
		return model.ClaimRejected, nil
	}
}

// ResolveClaim re-checks the gate for a user with a possibly staged claim.
// The staged claim is consumed at most once; applied reports whether this
// call freshly credited the bonus (false when it had already been credited).
func (s *ReferralService) ResolveClaim(ctx context.Context, userID int64) (outcome model.ResolveOutcome, applied bool, err error) {
	if !s.gate.IsSubscribedToAll(ctx, userID) {
		return model.ResolveStillBlocked, false, nil
	}

	referrerID, ok, err := s.store.TakePendingClaim(ctx, userID)
	if err != nil {
		return "", false, err
	}
	if !ok {
		return model.ResolveNothingPending, false, nil
	}

	creditOutcome, err := s.AttemptCredit(ctx, referrerID, userID)
	if err != nil {
		return "", false, err
	}
	return model.ResolveCredited, creditOutcome == model.CreditApplied, nil
}

func (s *ReferralService) Gate() *SubscriptionGate {
	return s.gate
}
