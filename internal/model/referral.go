package model

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// ReferralEvent is an immutable ledger row. The UNIQUE constraint on
// ReferredID is the sole mechanism preventing double crediting.
type ReferralEvent struct {
	ID         uuid.UUID `json:"id" db:"id"`
	ReferrerID int64     `json:"referrer_id" db:"referrer_id"`
	ReferredID int64     `json:"referred_id" db:"referred_id"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// PendingClaim is transient staging for a claim blocked on the subscription
// gate. At most one per referred user; a newer claim overwrites it.
type PendingClaim struct {
	ReferredID int64     `json:"referred_id" db:"referred_id"`
	ReferrerID int64     `json:"referrer_id" db:"referrer_id"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

type CreditOutcome string

const (
	CreditApplied         CreditOutcome = "applied"
	CreditAlreadyCredited CreditOutcome = "already_credited"
	CreditSelfReferral    CreditOutcome = "self_referral"
)

type ClaimOutcome string

const (
	ClaimAppliedNow  ClaimOutcome = "applied_now"
	ClaimAlreadyDone ClaimOutcome = "already_done"
	ClaimDeferred    ClaimOutcome = "deferred"
	ClaimRejected    ClaimOutcome = "rejected"
)

type ResolveOutcome string

const (
	ResolveCredited       ResolveOutcome = "credited"
	ResolveNothingPending ResolveOutcome = "nothing_pending"
	ResolveStillBlocked   ResolveOutcome = "still_blocked"
)

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
