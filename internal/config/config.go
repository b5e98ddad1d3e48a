// README: Config loader with env defaults for Slack, Google Maps, Gemini, and recheck settings.
package config

import (
	"os"
	"strconv"
	"time"
)

type RecheckConfig struct {
	Delay   time.Duration
	Horizon time.Duration
}

// MaxChecks is the check budget derived from the monitoring horizon and the
// delay between checks (e.g. 3600s / 120s = 30 checks).
func (c RecheckConfig) MaxChecks() int {
	if c.Delay <= 0 {
		return 0
	}
	return int(c.Horizon / c.Delay)
}

type Config struct {
	HTTP struct {
		Addr string
	}
	Slack struct {
		BotToken string
		AppToken string
	}
	Maps struct {
		APIKey string
	}
	AI struct {
		GeminiKey string
	}
	Redis struct {
		Addr string
	}
	Messages struct {
		File string
	}
	Recheck RecheckConfig
}

func Load() (Config, error) {
	var cfg Config
	cfg.HTTP.Addr = envOrDefault("ADVISOR_HTTP_ADDR", ":8080")
	cfg.Slack.BotToken = envOrError("SLACK_BOT_TOKEN")
	cfg.Slack.AppToken = envOrError("SLACK_APP_TOKEN")
	cfg.Maps.APIKey = envOrError("GOOGLE_MAPS_API_TOKEN")
	// Optional: without a key the bot runs without intent classification.
	cfg.AI.GeminiKey = os.Getenv("GEMINI_API_KEY")
	// Optional: without an address geocode results are not cached.
	cfg.Redis.Addr = os.Getenv("ADVISOR_REDIS_ADDR")
	cfg.Messages.File = os.Getenv("ADVISOR_MESSAGES_FILE")
	cfg.Recheck.Delay = time.Duration(envOrDefaultInt("ADVISOR_CHECK_DELAY_SECONDS", 120)) * time.Second
	cfg.Recheck.Horizon = time.Duration(envOrDefaultInt("ADVISOR_CHECK_HORIZON_SECONDS", 3600)) * time.Second
	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrError(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	panic("environment variable " + key + " is required")
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
