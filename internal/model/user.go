package model

import (
	"time"
)

type User struct {
	ID             int64     `json:"id" db:"id"`
	Username       *string   `json:"username,omitempty" db:"username"`
	FirstName      *string   `json:"first_name,omitempty" db:"first_name"`
	ReferredBy     *int64    `json:"referred_by,omitempty" db:"referred_by"`
	Balance        float64   `json:"balance" db:"balance"`
	ReferralsCount int       `json:"referrals_count" db:"referrals_count"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// DisplayName returns @username when set, otherwise "id:<id>".
func (u *User) DisplayName() string {
	if u.Username != nil && *u.Username != "" {
		return "@" + *u.Username
	}
	return "id:" + formatID(u.ID)
}

type GlobalStats struct {
	TotalUsers       int     `json:"total_users" db:"total_users"`
	TotalEvents      int     `json:"total_events" db:"total_events"`
	TotalReferralSum int     `json:"total_referral_sum" db:"total_referral_sum"`
	TotalBalance     float64 `json:"total_balance" db:"total_balance"`
}
