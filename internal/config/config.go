// Package config loads, defaults, and validates the WiseWhisper configuration.
// Values come from defaults, an optional YAML file, a local .env file, and the
// process environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-telegram/bot/models"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrConfiguration wraps every failure to produce a usable configuration.
var ErrConfiguration = errors.New("configuration error")

// Config is the root configuration object.
type Config struct {
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Model     ModelConfig     `mapstructure:"model"`
	Messages  MessagesConfig  `mapstructure:"messages"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Logger    LoggerConfig    `mapstructure:"logger"`
}

// TelegramConfig holds the messaging platform settings.
type TelegramConfig struct {
	Token              string        `mapstructure:"token"                validate:"required"`
	DropPendingUpdates bool          `mapstructure:"drop_pending_updates"`
	TypingInterval     time.Duration `mapstructure:"typing_interval"      validate:"min=1s"`
	APIURL             string        `mapstructure:"api_url"              validate:"omitempty,url"` // empty uses api.telegram.org

	// BotInfo is filled in at runtime from getMe and is never read from config.
	BotInfo *models.User `mapstructure:"-"`
}

// ModelConfig selects and tunes the language model backend.
type ModelConfig struct {
	Backend       string        `mapstructure:"backend"        validate:"required,oneof=local gemini"`
	Name          string        `mapstructure:"name"           validate:"required"`
	BaseURL       string        `mapstructure:"base_url"       validate:"omitempty,url"`
	APIKey        string        `mapstructure:"api_key"        validate:"required_if=Backend gemini"`
	MaxTokens     int           `mapstructure:"max_tokens"     validate:"min=1,max=8192"`
	Candidates    int           `mapstructure:"candidates"     validate:"min=1,max=8"`
	Temperature   float32       `mapstructure:"temperature"    validate:"min=0,max=2"` // 0 is not sent; the server default applies
	EchoPrompt    bool          `mapstructure:"echo_prompt"`
	Timeout       time.Duration `mapstructure:"timeout"`
	SpecialTokens []string      `mapstructure:"special_tokens"`
}

// MessagesConfig holds the fixed user-facing texts.
type MessagesConfig struct {
	Welcome  string `mapstructure:"welcome"  validate:"required"`
	Fallback string `mapstructure:"fallback" validate:"required"`
}

// DatabaseConfig configures the generation stats database.
type DatabaseConfig struct {
	// Path of the SQLite file. Empty disables generation stats entirely.
	Path           string        `mapstructure:"path"`
	StatsRetention time.Duration `mapstructure:"stats_retention" validate:"min=1h"`
}

// SchedulerConfig maps task names to their schedules.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks" validate:"dive"`
}

// TaskConfig configures a single scheduled task.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule" validate:"required_if=Enabled true"`
}

// LoggerConfig configures the process logger.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// Options controls where LoadConfig looks for its sources.
type Options struct {
	// ConfigPath is an optional YAML file. A missing file is not an error.
	ConfigPath string
	// EnvFile is an optional dotenv file. A missing file is not an error.
	EnvFile string
}

// LoadConfig builds the configuration from defaults, the YAML file, the
// dotenv file and the environment, then validates it. Every failure is
// wrapped with ErrConfiguration; in particular a missing TELEGRAM_TOKEN.
func LoadConfig(opts Options) (*Config, error) {
	if opts.EnvFile != "" {
		// godotenv never overrides variables already set in the environment.
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: failed to load env file %s: %v", ErrConfiguration, opts.EnvFile, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.ConfigPath != "" {
		v.SetConfigFile(opts.ConfigPath)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%w: failed to read config file %s: %v", ErrConfiguration, opts.ConfigPath, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrConfiguration, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the struct tags of the whole configuration tree.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: invalid fields: %s", ErrConfiguration, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	return nil
}
