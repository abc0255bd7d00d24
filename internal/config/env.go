package config

import (
	"fmt"
	"strconv"

	"github.com/ilyakaznacheev/cleanenv"
)

// envOverrides are read from the process environment on every Load. They win over the
// file but are never persisted by Save.
type envOverrides struct {
	TMDBAPIKey     string `env:"MEDIATREND_TMDB_API_KEY"`
	RadarrURL      string `env:"MEDIATREND_RADARR_URL"`
	RadarrAPIKey   string `env:"MEDIATREND_RADARR_API_KEY"`
	SonarrURL      string `env:"MEDIATREND_SONARR_URL"`
	SonarrAPIKey   string `env:"MEDIATREND_SONARR_API_KEY"`
	AuthEnabled    string `env:"MEDIATREND_AUTH_ENABLED"`
	LogLevel       string `env:"MEDIATREND_LOG_LEVEL"`
	TelegramToken  string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID string `env:"TELEGRAM_CHAT_ID"`
}

func readEnvOverrides() (envOverrides, error) {
	var env envOverrides
	if err := cleanenv.ReadEnv(&env); err != nil {
		return envOverrides{}, fmt.Errorf("read env: %w", err)
	}
	return env, nil
}

func (c *Config) applyEnvOverrides() error {
	env, err := readEnvOverrides()
	if err != nil {
		return err
	}

	setIf(&c.General.TMDBAPIKey, env.TMDBAPIKey)
	setIf(&c.Radarr.URL, env.RadarrURL)
	setIf(&c.Radarr.APIKey, env.RadarrAPIKey)
	setIf(&c.Sonarr.URL, env.SonarrURL)
	setIf(&c.Sonarr.APIKey, env.SonarrAPIKey)
	setIf(&c.Logging.Level, env.LogLevel)
	setIf(&c.Notifications.Telegram.BotToken, env.TelegramToken)
	setIf(&c.Notifications.Telegram.ChatID, env.TelegramChatID)

	if env.AuthEnabled != "" {
		enabled, err := strconv.ParseBool(env.AuthEnabled)
		if err != nil {
			return fmt.Errorf("MEDIATREND_AUTH_ENABLED: %w", err)
		}
		c.Web.Auth.Enabled = enabled
	}
	return nil
}

// restoreOverridden puts the file values back wherever next still carries an env value,
// so a settings round-trip through the dashboard does not persist secrets from the environment.
func restoreOverridden(next *Config, file Config) {
	env, err := readEnvOverrides()
	if err != nil {
		return
	}

	restoreIf(&next.General.TMDBAPIKey, file.General.TMDBAPIKey, env.TMDBAPIKey)
	restoreIf(&next.Radarr.URL, file.Radarr.URL, env.RadarrURL)
	restoreIf(&next.Radarr.APIKey, file.Radarr.APIKey, env.RadarrAPIKey)
	restoreIf(&next.Sonarr.URL, file.Sonarr.URL, env.SonarrURL)
	restoreIf(&next.Sonarr.APIKey, file.Sonarr.APIKey, env.SonarrAPIKey)
	restoreIf(&next.Logging.Level, file.Logging.Level, env.LogLevel)
	restoreIf(&next.Notifications.Telegram.BotToken, file.Notifications.Telegram.BotToken, env.TelegramToken)
	restoreIf(&next.Notifications.Telegram.ChatID, file.Notifications.Telegram.ChatID, env.TelegramChatID)

	if enabled, err := strconv.ParseBool(env.AuthEnabled); err == nil && next.Web.Auth.Enabled == enabled {
		next.Web.Auth.Enabled = file.Web.Auth.Enabled
	}
}

func setIf(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func restoreIf(dst *string, fileValue, envValue string) {
	if envValue != "" && *dst == envValue {
		*dst = fileValue
	}
}
