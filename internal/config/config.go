// Package config содержит логику чтения конфигурации купонного сервиса.
package config

import (
	"encoding/json"
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/UnniHoly/telegram-newyear-wheel-bot/internal/model"
)

// Config содержит параметры конфигурации купонного сервиса.
type Config struct {
	RunAddress    string `env:"RUN_ADDRESS"`
	DatabaseURI   string `env:"DATABASE_URI"`
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	BotToken      string `env:"TELEGRAM_BOT_TOKEN"`
	AdminID       int64  `env:"ADMIN_TELEGRAM_ID"`
	AdminAPIToken string `env:"ADMIN_API_TOKEN"`
	TimeZone      string `env:"TIME_ZONE" envDefault:"Europe/Minsk"`
	ValidityDays  int    `env:"COUPON_VALIDITY_DAYS" envDefault:"3"`
	DailyCap      bool   `env:"DAILY_CAP" envDefault:"true"`
	TierTableJSON string `env:"COUPON_TIERS"`
}

// defaultTiers — таблица секторов колеса по умолчанию.
var defaultTiers = []model.Tier{
	{Label: "5%", Weight: 40, CodeWord: "Подарок", Emoji: "🎁"},
	{Label: "10%", Weight: 30, CodeWord: "Сочельник", Emoji: "🌟"},
	{Label: "15%", Weight: 20, CodeWord: "Снеговик", Emoji: "⛄"},
	{Label: "20%", Weight: 10, CodeWord: "Снегурочка", Emoji: "❄️"},
}

// Parse считывает конфигурацию из .env-файла, переменных окружения и флагов
// командной строки. Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	// .env удобен при локальном запуске; в проде его просто нет.
	_ = godotenv.Load()

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envRedisAddr := cfg.RedisAddr

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for admin HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.RedisAddr, "r", "", "redis address for bot conversation state")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envRedisAddr != "" {
		cfg.RedisAddr = envRedisAddr
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.ValidityDays <= 0 {
		return nil, fmt.Errorf("coupon validity must be positive, got %d", cfg.ValidityDays)
	}

	return cfg, nil
}

// Tiers возвращает таблицу секторов колеса: из COUPON_TIERS (JSON-массив),
// либо встроенную таблицу по умолчанию. Корректность весов проверяет wheel.New.
func (c *Config) Tiers() ([]model.Tier, error) {
	if c.TierTableJSON == "" {
		return defaultTiers, nil
	}

	var tiers []model.Tier
	if err := json.Unmarshal([]byte(c.TierTableJSON), &tiers); err != nil {
		return nil, fmt.Errorf("parse COUPON_TIERS: %w", err)
	}
	return tiers, nil
}
