package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dvoengpt-sudo/ubm-bot/internal/model"
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// ApplyReferral performs the whole crediting mutation in one transaction:
// ensure the referrer row exists, insert the ledger event, bind referred_by
// if still unset, and increment the referrer's counter and balance.
//
// The UNIQUE constraint on referrals.referred_id is the linearization point:
// of any number of concurrent calls for the same referred user exactly one
// insert succeeds. The losers observe the violation, the transaction rolls
// back and (false, nil) is returned with no partial credit.
func (r *Repository) ApplyReferral(ctx context.Context, referrerID, referredID int64, bonus float64) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO users (id) VALUES ($1) ON CONFLICT (id) DO NOTHING",
		referrerID)
	if err != nil {
		return false, fmt.Errorf("failed to ensure referrer: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO referrals (referrer_id, referred_id) VALUES ($1, $2)",
		referrerID, referredID)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to record referral event: %w", err)
	}

	// referred_by is write-once
	_, err = tx.ExecContext(ctx,
		"UPDATE users SET referred_by = COALESCE(referred_by, $1), updated_at = NOW() WHERE id = $2",
		referrerID, referredID)
	if err != nil {
		return false, fmt.Errorf("failed to bind referred_by: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE users SET referrals_count = referrals_count + 1, balance = balance + $1, updated_at = NOW() WHERE id = $2",
		bonus, referrerID)
	if err != nil {
		return false, fmt.Errorf("failed to credit referrer: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// ListReferralEvents returns the referrer's history, most recent first.
func (r *Repository) ListReferralEvents(ctx context.Context, referrerID int64, limit int) ([]model.ReferralEvent, error) {
	var events []model.ReferralEvent
	query := `
		SELECT * FROM referrals
		WHERE referrer_id = $1
		ORDER BY created_at DESC
		LIMIT $2`
	err := r.db.SelectContext(ctx, &events, query, referrerID, limit)
	return events, err
}

func (r *Repository) CountReferralEvents(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM referrals")
	return count, err
}
