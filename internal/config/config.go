// Package config loads the engine configuration from an optional YAML file,
// PLANTBUD_* environment variables and the usual secret variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/vthunder/plantbud/internal/history"
	"github.com/vthunder/plantbud/internal/schedule"
	"github.com/vthunder/plantbud/internal/sinric"
	"github.com/vthunder/plantbud/internal/status"
	"github.com/vthunder/plantbud/internal/summarizer"
	"github.com/vthunder/plantbud/internal/types"
)

// Config is the validated, immutable engine configuration
type Config struct {
	StatePath     string        `mapstructure:"state_path"`
	Timezone      string        `mapstructure:"timezone"`
	PlantName     string        `mapstructure:"plant_name"`
	Hemisphere    string        `mapstructure:"hemisphere"`
	CycleInterval time.Duration `mapstructure:"cycle_interval"`
	HistoryWindow int           `mapstructure:"history_window"`
	OverrideRules string        `mapstructure:"override_rules"` // YAML rule table; empty uses the built-in table
	MetricsAddr   string        `mapstructure:"metrics_addr"`
	Debug         bool          `mapstructure:"debug"`

	Schedule   schedule.Config       `mapstructure:"schedule"`
	Thresholds summarizer.Thresholds `mapstructure:"thresholds"`
	Status     status.Config         `mapstructure:"status"`
	Timeouts   Timeouts              `mapstructure:"timeouts"`

	Images   Images   `mapstructure:"images"`
	Gemini   Gemini   `mapstructure:"gemini"`
	Mem0     Mem0     `mapstructure:"mem0"`
	Vector   Vector   `mapstructure:"vector"`
	Sinric   Sinric   `mapstructure:"sinric"`
	Discord  Discord  `mapstructure:"discord"`
	Telegram Telegram `mapstructure:"telegram"`

	location *time.Location
}

// Timeouts bound every external call
type Timeouts struct {
	Call      time.Duration `mapstructure:"call"`
	Diagnosis time.Duration `mapstructure:"diagnosis"`
}

// Images is the photo folder
type Images struct {
	Dir      string `mapstructure:"dir"`
	MaxBytes int64  `mapstructure:"max_bytes"`
}

// Gemini is the reasoning service
type Gemini struct {
	APIKey           string  `mapstructure:"api_key"`
	Model            string  `mapstructure:"model"`
	Temperature      float32 `mapstructure:"temperature"`
	MaxTokens        int32   `mapstructure:"max_tokens"`
	RequirementsPath string  `mapstructure:"requirements_path"`
}

// Mem0 is the hosted semantic memory. Disabled without an API key.
type Mem0 struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	UserID  string `mapstructure:"user_id"`
}

// Vector is the local semantic memory, used when Mem0 is not configured
type Vector struct {
	Enabled   bool   `mapstructure:"enabled"`
	OllamaURL string `mapstructure:"ollama_url"`
	Model     string `mapstructure:"model"`
}

// Sinric is the device transport
type Sinric struct {
	APIKey      string   `mapstructure:"api_key"`
	BaseURL     string   `mapstructure:"base_url"`
	Group       string   `mapstructure:"group"`
	LightingIDs []string `mapstructure:"lighting_ids"`
	AerationIDs []string `mapstructure:"aeration_ids"`
	SensorID    string   `mapstructure:"sensor_id"`
}

// Discord notification channel. Disabled without a token.
type Discord struct {
	Token     string `mapstructure:"token"`
	ChannelID string `mapstructure:"channel_id"`
}

// Telegram notification chat. Disabled without a token.
type Telegram struct {
	Token   string `mapstructure:"token"`
	ChatID  string `mapstructure:"chat_id"`
	BaseURL string `mapstructure:"base_url"`
}

// secrets may come from unprefixed variables
var secrets = map[string][]string{
	"gemini.api_key": {"PLANTBUD_GEMINI_API_KEY", "GEMINI_API_KEY"},
	"sinric.api_key": {"PLANTBUD_SINRIC_API_KEY", "SINRIC_API_KEY"},
	"mem0.api_key":   {"PLANTBUD_MEM0_API_KEY", "MEM0_API_KEY"},
	"discord.token":  {"PLANTBUD_DISCORD_TOKEN", "DISCORD_TOKEN"},
	"telegram.token": {"PLANTBUD_TELEGRAM_BOT_TOKEN", "TELEGRAM_BOT_TOKEN"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("state_path", "state")
	v.SetDefault("timezone", "America/Argentina/Buenos_Aires")
	v.SetDefault("plant_name", "Philodendron Lemon Lime")
	v.SetDefault("hemisphere", string(history.Southern))
	v.SetDefault("cycle_interval", time.Hour)
	v.SetDefault("history_window", 10)
	v.SetDefault("metrics_addr", ":9464")

	sc := schedule.DefaultConfig()
	v.SetDefault("schedule.lighting_start", sc.LightingStart)
	v.SetDefault("schedule.lighting_end", sc.LightingEnd)
	v.SetDefault("schedule.aeration_intervals", sc.AerationIntervals)

	th := summarizer.DefaultThresholds()
	v.SetDefault("thresholds.temp_min", th.TempMin)
	v.SetDefault("thresholds.temp_max", th.TempMax)
	v.SetDefault("thresholds.humidity_min", th.HumidityMin)
	v.SetDefault("thresholds.humidity_max", th.HumidityMax)

	st := status.DefaultConfig()
	v.SetDefault("status.daily_summary_hour", st.DailySummaryHour)
	v.SetDefault("status.no_images_hour", st.NoImagesHour)

	v.SetDefault("timeouts.call", 30*time.Second)
	v.SetDefault("timeouts.diagnosis", 90*time.Second)

	v.SetDefault("images.dir", "images")
	v.SetDefault("images.max_bytes", 10*1024*1024)

	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("gemini.temperature", 0.4)
	v.SetDefault("gemini.max_tokens", 4096)

	v.SetDefault("mem0.user_id", "philodendron_lemon_lime")
	v.SetDefault("vector.enabled", true)
	v.SetDefault("vector.model", "nomic-embed-text")

	v.SetDefault("sinric.group", "Indoor Garden")
}

// Load reads configuration. path may name a YAML file; when empty,
// plantbud.yaml is looked up in the working directory and state path.
// A missing .env or config file is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("plantbud")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("state")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: read config: %w", types.ErrConfiguration, err)
		}
	}

	v.SetEnvPrefix("PLANTBUD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, envs := range secrets {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: decode config: %w", types.ErrConfiguration, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration once at startup and resolves the time zone
func (c *Config) Validate() error {
	var errs []error
	if c.StatePath == "" {
		errs = append(errs, errors.New("state_path is required"))
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	} else {
		c.location = loc
	}
	switch history.Hemisphere(c.Hemisphere) {
	case history.Southern, history.Northern:
	default:
		errs = append(errs, fmt.Errorf("hemisphere %q must be southern or northern", c.Hemisphere))
	}
	if c.CycleInterval < time.Minute {
		errs = append(errs, fmt.Errorf("cycle_interval %s is below one minute", c.CycleInterval))
	}
	if c.HistoryWindow <= 0 {
		errs = append(errs, fmt.Errorf("history_window must be positive"))
	}
	if c.Timeouts.Call <= 0 || c.Timeouts.Diagnosis <= 0 {
		errs = append(errs, fmt.Errorf("timeouts must be positive"))
	}
	for _, v := range []interface{ Validate() error }{c.Schedule, c.Thresholds, c.Status} {
		if err := v.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Discord.Token != "" && c.Discord.ChannelID == "" {
		errs = append(errs, errors.New("discord.channel_id is required with a discord token"))
	}
	if c.Telegram.Token != "" && c.Telegram.ChatID == "" {
		errs = append(errs, errors.New("telegram.chat_id is required with a telegram token"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", types.ErrConfiguration, errors.Join(errs...))
	}
	return nil
}

// RequireServices checks the secrets a decision cycle needs. Read-only
// commands skip it.
func (c *Config) RequireServices() error {
	var errs []error
	if c.Gemini.APIKey == "" {
		errs = append(errs, errors.New("GEMINI_API_KEY is required"))
	}
	if c.Sinric.APIKey == "" {
		errs = append(errs, errors.New("SINRIC_API_KEY is required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", types.ErrConfiguration, errors.Join(errs...))
	}
	return nil
}

// Location is the plant's time zone. Valid after Validate.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.Local
	}
	return c.location
}

// SinricConfig builds the transport config with the device bindings
func (c *Config) SinricConfig() sinric.Config {
	devices := make(map[string]types.Actuator)
	for _, id := range c.Sinric.LightingIDs {
		devices[id] = types.ActuatorLighting
	}
	for _, id := range c.Sinric.AerationIDs {
		devices[id] = types.ActuatorAeration
	}
	return sinric.Config{
		BaseURL:  c.Sinric.BaseURL,
		APIKey:   c.Sinric.APIKey,
		Group:    c.Sinric.Group,
		Devices:  devices,
		SensorID: c.Sinric.SensorID,
	}
}
