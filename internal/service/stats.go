package service

import (
	"context"

	"github.com/dvoengpt-sudo/ubm-bot/internal/model"
	"github.com/dvoengpt-sudo/ubm-bot/internal/repository"
)

const LeaderboardSize = 10

type StatsService struct {
	repo *repository.Repository
}

func NewStatsService(repo *repository.Repository) *StatsService {
	return &StatsService{repo: repo}
}

func (s *StatsService) Leaderboard(ctx context.Context) ([]model.User, error) {
	return s.repo.GetTopReferrers(ctx, LeaderboardSize)
}

func (s *StatsService) GlobalStats(ctx context.Context) (*model.GlobalStats, error) {
	return s.repo.GetGlobalStats(ctx)
}

// RecentReferrals returns the referrer's latest credited invites.
func (s *StatsService) RecentReferrals(ctx context.Context, referrerID int64, limit int) ([]model.ReferralEvent, error) {
	return s.repo.ListReferralEvents(ctx, referrerID, limit)
}
