package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/tablebank/internal/model"
	"github.com/mcoot/tablebank/internal/services/codegen"
	"github.com/mcoot/tablebank/internal/services/ledger"
)

const (
	// EnvPrefix prefixes every environment variable, e.g. TABLEBANK_SERVER_PORT
	EnvPrefix = "TABLEBANK"

	// DefaultConfigName is the config file looked up in the working directory
	DefaultConfigName = "tablebank"

	// DefaultEnvFile is loaded if present
	DefaultEnvFile = ".env"
)

// Storage types
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
)

// Config is the complete server configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Lobby    LobbyConfig    `mapstructure:"lobby"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Identity IdentityConfig `mapstructure:"identity"`
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// StorageConfig selects and configures the storage backend
type StorageConfig struct {
	Type  string      `mapstructure:"type"`
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig holds Redis settings, used when Type is redis
type RedisConfig struct {
	URL      string        `mapstructure:"url"`
	TTL      time.Duration `mapstructure:"ttl"`
	PoolSize int           `mapstructure:"pool_size"`
}

// LobbyConfig holds defaults for new lobbies
type LobbyConfig struct {
	CodeLength      int     `mapstructure:"code_length"`
	StartingBalance int64   `mapstructure:"starting_balance"`
	QuickAmounts    []int64 `mapstructure:"quick_amounts"`
}

// LedgerConfig holds ledger settings
type LedgerConfig struct {
	UndoMode string `mapstructure:"undo_mode"`
}

// IdentityConfig holds seat token settings
type IdentityConfig struct {
	TokenCost int `mapstructure:"token_cost"`
}

// New returns a viper instance with defaults and environment binding set up
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// SetDefaults registers the default value of every key
func SetDefaults(v *viper.Viper) {
	defaults := model.DefaultSettings()

	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("storage.type", StorageTypeMemory)
	v.SetDefault("storage.redis.url", "redis://localhost:6379")
	v.SetDefault("storage.redis.ttl", 24*time.Hour)
	v.SetDefault("storage.redis.pool_size", 10)
	v.SetDefault("lobby.code_length", codegen.DefaultLength)
	v.SetDefault("lobby.starting_balance", defaults.StartingBalance)
	v.SetDefault("lobby.quick_amounts", defaults.QuickAmounts[:])
	v.SetDefault("ledger.undo_mode", string(ledger.UndoModeInverse))
	v.SetDefault("identity.token_cost", bcrypt.DefaultCost)
}

// Load reads the optional env file and config file into v and decodes the
// result. An empty configFile looks for tablebank.toml in the working
// directory; an empty envFile looks for .env. Only explicitly named files must
// exist.
func Load(v *viper.Viper, configFile, envFile string) (*Config, error) {
	if err := loadEnvFile(envFile); err != nil {
		return nil, err
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("toml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadEnvFile(envFile string) error {
	path := envFile
	if path == "" {
		path = DefaultEnvFile
	}
	err := godotenv.Load(path)
	if err == nil {
		return nil
	}
	if envFile == "" && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load env file: %w", err)
}

// Validate rejects values the server cannot run with
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 0 and 65535, got %d", c.Server.Port))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must be positive"))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}

	switch c.Storage.Type {
	case StorageTypeMemory:
	case StorageTypeRedis:
		if c.Storage.Redis.URL == "" {
			errs = append(errs, errors.New("storage.redis.url is required when storage.type is redis"))
		}
		if c.Storage.Redis.TTL <= 0 {
			errs = append(errs, errors.New("storage.redis.ttl must be positive"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.type must be %q or %q, got %q", StorageTypeMemory, StorageTypeRedis, c.Storage.Type))
	}

	if c.Lobby.CodeLength < 4 || c.Lobby.CodeLength > 12 {
		errs = append(errs, fmt.Errorf("lobby.code_length must be between 4 and 12, got %d", c.Lobby.CodeLength))
	}
	if c.Lobby.StartingBalance < 0 {
		errs = append(errs, errors.New("lobby.starting_balance must not be negative"))
	}
	if len(c.Lobby.QuickAmounts) != model.QuickAmountCount {
		errs = append(errs, fmt.Errorf("lobby.quick_amounts must have %d entries, got %d", model.QuickAmountCount, len(c.Lobby.QuickAmounts)))
	}
	for _, amount := range c.Lobby.QuickAmounts {
		if amount <= 0 {
			errs = append(errs, errors.New("lobby.quick_amounts must all be positive"))
			break
		}
	}

	if _, err := ledger.ParseUndoMode(c.Ledger.UndoMode); err != nil {
		errs = append(errs, fmt.Errorf("ledger.undo_mode: %w", err))
	}

	if c.Identity.TokenCost < bcrypt.MinCost || c.Identity.TokenCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("identity.token_cost must be between 4 and 31, got %d", c.Identity.TokenCost))
	}

	return errors.Join(errs...)
}

// ParseLevel converts a level name to a slog.Level
func ParseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level %q is not a valid level", level)
	}
	return l, nil
}

// Settings returns the default settings applied to new lobbies
func (c *Config) Settings() model.Settings {
	settings := model.DefaultSettings()
	settings.StartingBalance = c.Lobby.StartingBalance
	copy(settings.QuickAmounts[:], c.Lobby.QuickAmounts)
	return settings
}
