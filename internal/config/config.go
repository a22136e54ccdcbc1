package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	DefaultConfigPath     = "config.toml"
	DefaultHTTPAddr       = ":8080"
	DefaultJWTExpiresIn   = "24h"
	DefaultPGHost         = "127.0.0.1"
	DefaultPGPort         = 5432
	DefaultPGUser         = "postgres"
	DefaultPGDatabase     = "netherchat"
	DefaultPGSSLMode      = "disable"
	DefaultHistoryLimit   = 300
	DefaultHistoryPage    = 100
	DefaultRetentionHours = 72
	DefaultGiphyBaseURL   = "https://api.giphy.com/v1/gifs"
)

type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Auth     AuthConfig     `toml:"auth"`
	Admin    AdminConfig    `toml:"admin"`
	Discord  DiscordConfig  `toml:"discord"`
	Postgres PostgresConfig `toml:"postgres"`
	Sync     SyncConfig     `toml:"sync"`
	Giphy    GiphyConfig    `toml:"giphy"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type AuthConfig struct {
	JWTSecret    string `toml:"jwt_secret"`
	JWTExpiresIn string `toml:"jwt_expires_in"`
}

// AdminConfig holds the static operator allow-list. Wallets listed here are
// admins regardless of their stored grant.
type AdminConfig struct {
	Wallets []string `toml:"wallets"`
}

type DiscordConfig struct {
	GuildID string `toml:"guild_id"`
	// BotToken is the global fallback credential used when a wallet has no
	// bot of its own.
	BotToken string `toml:"bot_token"`
}

type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

// SyncConfig bounds history pulls and cache retention. The history limit and
// the retention window are independent knobs; nothing requires them to agree.
type SyncConfig struct {
	HistoryLimit   int `toml:"history_limit"`
	HistoryPage    int `toml:"history_page"`
	RetentionHours int `toml:"retention_hours"`
}

type GiphyConfig struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
}

// ConnString builds the pgx connection string.
func (c PostgresConfig) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

// MigrateURL builds the golang-migrate database URL for the pgx/v5 driver.
func (c PostgresConfig) MigrateURL() string {
	return fmt.Sprintf("pgx5://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Auth: AuthConfig{
			JWTExpiresIn: DefaultJWTExpiresIn,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		Sync: SyncConfig{
			HistoryLimit:   DefaultHistoryLimit,
			HistoryPage:    DefaultHistoryPage,
			RetentionHours: DefaultRetentionHours,
		},
		Giphy: GiphyConfig{
			BaseURL: DefaultGiphyBaseURL,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			applyEnv(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	applyEnv(&cfg)
	return cfg, nil
}

// applyEnv overrides secrets and the admin allow-list from the environment so
// deployments do not have to write them into the config file.
func applyEnv(cfg *Config) {
	if v := os.Getenv("NETHER_DISCORD_BOT_TOKEN"); v != "" {
		cfg.Discord.BotToken = v
	}
	if v := os.Getenv("NETHER_DISCORD_GUILD_ID"); v != "" {
		cfg.Discord.GuildID = v
	}
	if v := os.Getenv("NETHER_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("NETHER_PG_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("NETHER_GIPHY_API_KEY"); v != "" {
		cfg.Giphy.APIKey = v
	}
	if v := os.Getenv("NETHER_ADMIN_WALLETS"); v != "" {
		wallets := make([]string, 0)
		for _, w := range strings.Split(v, ",") {
			if w = strings.TrimSpace(w); w != "" {
				wallets = append(wallets, w)
			}
		}
		cfg.Admin.Wallets = wallets
	}
}
