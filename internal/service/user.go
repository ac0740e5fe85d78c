package service

import (
	"context"
	"time"

	"github.com/dvoengpt-sudo/ubm-bot/internal/model"
	"github.com/dvoengpt-sudo/ubm-bot/internal/repository"
)

type UserService struct {
	repo *repository.Repository
}

func NewUserService(repo *repository.Repository) *UserService {
	return &UserService{repo: repo}
}

type TelegramUser struct {
	ID        int64
	Username  *string
	FirstName *string
}

// GetOrCreateUser upserts the user row and reports whether it was just
// created (rows younger than the window count as new).
func (s *UserService) GetOrCreateUser(ctx context.Context, tgUser TelegramUser) (*model.User, bool, error) {
	user := &model.User{
		ID:        tgUser.ID,
		Username:  tgUser.Username,
		FirstName: tgUser.FirstName,
	}
	if err := s.repo.UpsertUser(ctx, user); err != nil {
		return nil, false, err
	}

	isNew := time.Since(user.CreatedAt) < 30*time.Second
	return user, isNew, nil
}

func (s *UserService) GetUser(ctx context.Context, id int64) (*model.User, error) {
	return s.repo.GetUser(ctx, id)
}
