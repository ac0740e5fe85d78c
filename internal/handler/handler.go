package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/dvoengpt-sudo/ubm-bot/internal/repository"
	"github.com/dvoengpt-sudo/ubm-bot/internal/service"
)

type Handler struct {
	repo     *repository.Repository
	statsSvc *service.StatsService
}

func New(repo *repository.Repository, statsSvc *service.StatsService) *Handler {
	return &Handler{
		repo:     repo,
		statsSvc: statsSvc,
	}
}

func (h *Handler) Health(c *fiber.Ctx) error {
	if err := h.repo.Ping(c.Context()); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "degraded",
		})
	}
	return c.JSON(fiber.Map{
		"status": "ok",
	})
}

func (h *Handler) GetLeaderboard(c *fiber.Ctx) error {
	top, err := h.statsSvc.Leaderboard(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to get leaderboard",
		})
	}
	return c.JSON(fiber.Map{
		"leaderboard": top,
	})
}

func (h *Handler) GetStats(c *fiber.Ctx) error {
	stats, err := h.statsSvc.GlobalStats(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to get stats",
		})
	}
	return c.JSON(stats)
}
