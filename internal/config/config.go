// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Room       RoomConfig       `mapstructure:"room"`
	Tournament TournamentConfig `mapstructure:"tournament"`
	Limits     map[string]int64 `mapstructure:"limits"`
	Settlement SettlementConfig `mapstructure:"settlement"`
	Gateway    GatewayConfig    `mapstructure:"gateway"`
}

// ServerConfig holds the HTTP listener configuration.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	LogLevel        string        `mapstructure:"log_level"`
	AdminToken      string        `mapstructure:"admin_token"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// RoomConfig holds the round timing of every room.
type RoomConfig struct {
	BettingSeconds int           `mapstructure:"betting_seconds"`
	SpinDelay      time.Duration `mapstructure:"spin_delay"`
	PayoutDelay    time.Duration `mapstructure:"payout_delay"`
	Tick           time.Duration `mapstructure:"tick"`
	Manual         bool          `mapstructure:"manual"`
	QueueSize      int           `mapstructure:"queue_size"`
}

// TournamentConfig holds tournament room rules.
type TournamentConfig struct {
	EntryFee     int64         `mapstructure:"entry_fee"`
	MaxPlayers   int           `mapstructure:"max_players"`
	MinPlayers   int           `mapstructure:"min_players"`
	Rounds       int           `mapstructure:"rounds"`
	HouseCut     string        `mapstructure:"house_cut"`
	ResultsGrace time.Duration `mapstructure:"results_grace"`
}

// SettlementConfig selects the external ledger.
type SettlementConfig struct {
	// Provider is "wallet" (Postgres) or "noop".
	Provider       string        `mapstructure:"provider"`
	Timeout        time.Duration `mapstructure:"timeout"`
	InitialBalance int64         `mapstructure:"initial_balance"`
}

// GatewayConfig holds websocket session settings.
type GatewayConfig struct {
	WriteWait      time.Duration `mapstructure:"write_wait"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	SendBuffer     int           `mapstructure:"send_buffer"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// HouseCutDecimal parses the configured house cut.
func (t *TournamentConfig) HouseCutDecimal() (decimal.Decimal, error) {
	cut, err := decimal.NewFromString(t.HouseCut)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid tournament.house_cut %q: %w", t.HouseCut, err)
	}
	if cut.IsNegative() || cut.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("tournament.house_cut must be in [0, 1), got %s", cut)
	}
	return cut, nil
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in configPath, the working directory and ./config.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// e.g. DATABASE_HOST, ROOM_BETTING_SECONDS, TOURNAMENT_ENTRY_FEE
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the rooms cannot run with.
func (c *Config) Validate() error {
	if c.Room.BettingSeconds <= 0 {
		return fmt.Errorf("room.betting_seconds must be positive, got %d", c.Room.BettingSeconds)
	}
	if c.Tournament.MinPlayers < 1 || c.Tournament.MaxPlayers < c.Tournament.MinPlayers {
		return fmt.Errorf("tournament players must satisfy 1 <= min (%d) <= max (%d)",
			c.Tournament.MinPlayers, c.Tournament.MaxPlayers)
	}
	if c.Tournament.Rounds < 1 {
		return fmt.Errorf("tournament.rounds must be positive, got %d", c.Tournament.Rounds)
	}
	if _, err := c.Tournament.HouseCutDecimal(); err != nil {
		return err
	}
	switch c.Settlement.Provider {
	case "wallet":
		if !c.Database.Enabled {
			return errors.New("settlement.provider wallet requires database.enabled")
		}
	case "noop":
	default:
		return fmt.Errorf("unknown settlement.provider %q", c.Settlement.Provider)
	}
	return nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.log_level", "info")

	v.SetDefault("database.enabled", true)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "roulette")
	v.SetDefault("database.name", "roulette")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	v.SetDefault("room.betting_seconds", 15)
	v.SetDefault("room.spin_delay", "5s")
	v.SetDefault("room.payout_delay", "4s")
	v.SetDefault("room.tick", "1s")
	v.SetDefault("room.manual", false)
	v.SetDefault("room.queue_size", 20)

	v.SetDefault("tournament.entry_fee", 10000)
	v.SetDefault("tournament.max_players", 6)
	v.SetDefault("tournament.min_players", 2)
	v.SetDefault("tournament.rounds", 10)
	v.SetDefault("tournament.house_cut", "0.20")
	v.SetDefault("tournament.results_grace", "15s")

	v.SetDefault("settlement.provider", "wallet")
	v.SetDefault("settlement.timeout", "10s")
	v.SetDefault("settlement.initial_balance", 100000)

	v.SetDefault("gateway.write_wait", "10s")
	v.SetDefault("gateway.pong_wait", "60s")
	v.SetDefault("gateway.max_message_size", 4096)
	v.SetDefault("gateway.send_buffer", 64)
}
