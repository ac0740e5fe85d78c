package repository

import (
	"context"
	"database/sql"
	"errors"
)

// StagePendingClaim stores a gate-blocked claim. Last write wins: a newer
// claim for the same referred user replaces the staged referrer.
func (r *Repository) StagePendingClaim(ctx context.Context, referredID, referrerID int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO pending_referrals (referred_id, referrer_id)
		VALUES ($1, $2)
		ON CONFLICT (referred_id) DO UPDATE SET
			referrer_id = EXCLUDED.referrer_id,
			created_at = NOW()`,
		referredID, referrerID)
	return err
}

// TakePendingClaim removes and returns the staged claim in a single
// statement, so two concurrent resolvers can never both take it.
func (r *Repository) TakePendingClaim(ctx context.Context, referredID int64) (int64, bool, error) {
	var referrerID int64
	err := r.db.QueryRowContext(ctx,
		"DELETE FROM pending_referrals WHERE referred_id = $1 RETURNING referrer_id",
		referredID).Scan(&referrerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return referrerID, true, nil
}
