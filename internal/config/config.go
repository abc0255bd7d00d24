package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone = "UTC"
	defaultPath     = "settings.yaml"
	configPathEnv   = "MEDIATREND_CONFIG"
	defaultTopCount = 10
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging" json:"logging"`
	General       GeneralConfig      `yaml:"general" json:"general"`
	Radarr        TargetConfig       `yaml:"radarr" json:"radarr"`
	Sonarr        TargetConfig       `yaml:"sonarr" json:"sonarr"`
	Scheduler     SchedulerConfig    `yaml:"scheduler" json:"scheduler"`
	Browser       BrowserConfig      `yaml:"browser" json:"browser"`
	Web           WebConfig          `yaml:"web" json:"web"`
	Notifications NotificationConfig `yaml:"notifications" json:"notifications"`
}

// LoggingConfig selects the console level.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level" validate:"omitempty,oneof=debug info warn warning error"`
}

// GeneralConfig is shared by every job.
type GeneralConfig struct {
	TMDBAPIKey string   `yaml:"tmdbApiKey" json:"tmdbApiKey"`
	Countries  []string `yaml:"countries" json:"countries" validate:"dive,required,alpha"`
	TopCount   int      `yaml:"topCount" json:"topCount" validate:"min=1,max=10"`
}

// TargetConfig describes one Radarr or Sonarr instance and its submission defaults.
type TargetConfig struct {
	URL              string `yaml:"url" json:"url" validate:"omitempty,url"`
	APIKey           string `yaml:"apiKey" json:"apiKey"`
	QualityProfileID int    `yaml:"qualityProfileId" json:"qualityProfileId" validate:"min=0"`
	RootFolderPath   string `yaml:"rootFolderPath" json:"rootFolderPath"`
	SearchOnAdd      bool   `yaml:"searchOnAdd" json:"searchOnAdd"`
}

// SchedulerConfig maps job keys to their daily trigger.
type SchedulerConfig struct {
	Timezone string               `yaml:"timezone" json:"timezone"`
	Jobs     map[string]JobConfig `yaml:"jobs" json:"jobs" validate:"dive"`

	location *time.Location
}

// JobConfig enables a job at a local HH:MM.
type JobConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Time    string `yaml:"time" json:"time" validate:"hhmm"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// BrowserConfig tunes the headless browser used by the FlixPatrol scanner.
type BrowserConfig struct {
	ExecPath    string `yaml:"execPath" json:"execPath"`
	UserAgent   string `yaml:"userAgent" json:"userAgent"`
	MaxSessions int    `yaml:"maxSessions" json:"maxSessions" validate:"min=1,max=8"`
}

// WebConfig configures the dashboard listener.
type WebConfig struct {
	Listen string     `yaml:"listen" json:"listen" validate:"required"`
	Auth   AuthConfig `yaml:"auth" json:"auth"`
}

// AuthConfig guards the dashboard with HTTP basic auth.
type AuthConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Username string `yaml:"username" json:"username" validate:"required_if=Enabled true"`
	Password string `yaml:"password" json:"password" validate:"required_if=Enabled true"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram" json:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken" json:"botToken"`
	ChatID   string `yaml:"chatId" json:"chatId"`
}

// ResolvePath picks the settings file: explicit flag, then MEDIATREND_CONFIG, then settings.yaml.
func ResolvePath(flagValue string) string {
	if v := strings.TrimSpace(flagValue); v != "" {
		return v
	}
	if v := strings.TrimSpace(os.Getenv(configPathEnv)); v != "" {
		return v
	}
	return defaultPath
}

// Load reads the YAML settings file, writing defaults when it does not exist yet.
// Unreadable or unparseable files fall back to defaults. The returned Config carries env
// overrides; the second value is the file view without them.
func Load(path string) (Config, Config) {
	fileCfg := defaultConfig()

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := Save(path, fileCfg); err != nil {
			log.Printf("config: cannot write defaults to %s: %v", path, err)
		}
	case err != nil:
		log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
	default:
		parsed, err := parse(raw)
		if err != nil {
			log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
		} else {
			fileCfg = parsed
		}
	}

	fileCfg.normalize()
	cfg := fileCfg.Clone()
	if err := cfg.applyEnvOverrides(); err != nil {
		log.Printf("config: ignoring environment overrides: %v", err)
	}
	cfg.bindTimezone()
	fileCfg.bindTimezone()

	return cfg, fileCfg
}

// parse decodes raw YAML over the defaults, so absent keys keep their default value.
func parse(raw []byte) (Config, error) {
	cfg := defaultConfig()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// normalize fills zero values and adds any catalog job the file does not list.
func (c *Config) normalize() {
	if c.General.TopCount <= 0 {
		c.General.TopCount = defaultTopCount
	}
	for i, code := range c.General.Countries {
		c.General.Countries[i] = strings.ToUpper(strings.TrimSpace(code))
	}
	if c.Browser.MaxSessions <= 0 {
		c.Browser.MaxSessions = 1
	}
	if c.Web.Listen == "" {
		c.Web.Listen = ":8080"
	}
	if c.Scheduler.Timezone == "" {
		c.Scheduler.Timezone = defaultTimezone
	}
	if c.Scheduler.Jobs == nil {
		c.Scheduler.Jobs = map[string]JobConfig{}
	}
	for key, job := range defaultJobs() {
		if _, ok := c.Scheduler.Jobs[key]; !ok {
			c.Scheduler.Jobs[key] = job
		}
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

// Clone deep-copies the slices and maps so a snapshot never aliases the live config.
func (c Config) Clone() Config {
	out := c
	out.General.Countries = append([]string(nil), c.General.Countries...)
	out.Scheduler.Jobs = make(map[string]JobConfig, len(c.Scheduler.Jobs))
	for k, v := range c.Scheduler.Jobs {
		out.Scheduler.Jobs[k] = v
	}
	return out
}

// Target returns the connector settings used for a media kind suffix ("movies"/"series").
func (c Config) Target(suffix string) TargetConfig {
	if suffix == "series" {
		return c.Sonarr
	}
	return c.Radarr
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging: LoggingConfig{Level: "info"},
		General: GeneralConfig{
			TMDBAPIKey: "",
			Countries:  []string{"DE", "US", "CH"},
			TopCount:   defaultTopCount,
		},
		Radarr: TargetConfig{
			URL:              "http://localhost:7878",
			QualityProfileID: 1,
			RootFolderPath:   "/movies",
			SearchOnAdd:      true,
		},
		Sonarr: TargetConfig{
			URL:              "http://localhost:8989",
			QualityProfileID: 1,
			RootFolderPath:   "/tv",
			SearchOnAdd:      true,
		},
		Scheduler: SchedulerConfig{Timezone: defaultTimezone, Jobs: defaultJobs(), location: tz},
		Browser:   BrowserConfig{MaxSessions: 1},
		Web: WebConfig{
			Listen: ":8080",
			Auth:   AuthConfig{Enabled: false, Username: "admin", Password: "password"},
		},
	}
}

// defaultJobs lists every platform twice, disabled, from 04:00 in 15 minute steps.
func defaultJobs() map[string]JobConfig {
	jobs := make(map[string]JobConfig, len(platforms)*2)
	start := 4 * 60
	for i, p := range platforms {
		for j, suffix := range []string{"movies", "series"} {
			minutes := start + (i*2+j)*15
			jobs[p.ID+"_"+suffix] = JobConfig{
				Enabled: false,
				Time:    fmt.Sprintf("%02d:%02d", (minutes/60)%24, minutes%60),
			}
		}
	}
	return jobs
}
