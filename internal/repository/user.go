package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dvoengpt-sudo/ubm-bot/internal/model"
)

var ErrUserNotFound = errors.New("user not found")

func (r *Repository) GetUser(ctx context.Context, id int64) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, "SELECT * FROM users WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// UpsertUser inserts the user if absent, otherwise refreshes the display
// fields only. Balance, referral counters and referred_by are never touched
// here. The full current row is written back into user.
func (r *Repository) UpsertUser(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (id, username, first_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username,
			first_name = EXCLUDED.first_name,
			updated_at = NOW()
		RETURNING referred_by, balance, referrals_count, created_at, updated_at`

	return r.db.QueryRowContext(ctx, query,
		user.ID,
		user.Username,
		user.FirstName,
	).Scan(&user.ReferredBy, &user.Balance, &user.ReferralsCount, &user.CreatedAt, &user.UpdatedAt)
}

// GetTopReferrers returns the leaderboard ordered by referral count, then
// balance.
func (r *Repository) GetTopReferrers(ctx context.Context, limit int) ([]model.User, error) {
	var users []model.User
	query := `
		SELECT * FROM users
		ORDER BY referrals_count DESC, balance DESC
		LIMIT $1`
	err := r.db.SelectContext(ctx, &users, query, limit)
	return users, err
}

func (r *Repository) GetGlobalStats(ctx context.Context) (*model.GlobalStats, error) {
	stats := &model.GlobalStats{}

	if err := r.db.GetContext(ctx, &stats.TotalUsers,
		"SELECT COUNT(*) FROM users"); err != nil {
		return nil, err
	}
	if err := r.db.GetContext(ctx, &stats.TotalReferralSum,
		"SELECT COALESCE(SUM(referrals_count), 0) FROM users"); err != nil {
		return nil, err
	}
	if err := r.db.GetContext(ctx, &stats.TotalBalance,
		"SELECT COALESCE(SUM(balance), 0) FROM users"); err != nil {
		return nil, err
	}

	var err error
	stats.TotalEvents, err = r.CountReferralEvents(ctx)
	if err != nil {
		return nil, err
	}
	return stats, nil
}
