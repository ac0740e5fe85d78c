package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/dvoengpt-sudo/ubm-bot/internal/model"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Telegram TelegramConfig
	Referral ReferralConfig
}

type ServerConfig struct {
	Port         string
	Environment  string
	AdminToken   string
	AllowOrigins string
}

type DatabaseConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type TelegramConfig struct {
	BotToken string
	AdminIDs []int64
}

type ReferralConfig struct {
	BonusPerReferral float64
	PayoutTarget     int
	Channels         []model.ChannelRef
}

func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.Name + "?sslmode=" + d.SSLMode
}

func (t TelegramConfig) IsAdmin(userID int64) bool {
	for _, id := range t.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	bonus, _ := strconv.ParseFloat(getEnv("BONUS_PER_REF", "1.0"), 64)
	target, _ := strconv.Atoi(getEnv("PAYOUT_TARGET", "600"))

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", getEnv("PORT", "10000")),
			Environment:  getEnv("ENVIRONMENT", "development"),
			AdminToken:   getEnv("ADMIN_TOKEN", ""),
			AllowOrigins: getEnv("ALLOW_ORIGINS", "*"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "ubm"),
			Password: getEnv("DB_PASSWORD", "ubm"),
			Name:     getEnv("DB_NAME", "ubm"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Telegram: TelegramConfig{
			BotToken: getEnv("BOT_TOKEN", ""),
			AdminIDs: parseAdminIDs(getEnv("ADMIN_IDS", "")),
		},
		Referral: ReferralConfig{
			BonusPerReferral: bonus,
			PayoutTarget:     target,
			Channels:         parseChannels(getEnv("SUB_CHANNELS", "")),
		},
	}

	return cfg, nil
}

func parseAdminIDs(raw string) []int64 {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func parseChannels(raw string) []model.ChannelRef {
	var channels []model.ChannelRef
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		channels = append(channels, model.ParseChannelRef(part))
	}
	return channels
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Gate and recheck timing.
const (
	MembershipQueryTimeout = 5 * time.Second
	AutoRecheckDelay       = 15 * time.Second
)
