package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Config struct {
	MercadoLibre MercadoLibreConfig `toml:"mercadolibre"`
	Sync         SyncConfig         `toml:"sync"`
	History      HistoryConfig      `toml:"history"`
	Database     DatabaseConfig     `toml:"database"`
	Mysql        MysqlConfig        `toml:"mysql"`
	HTTP         HTTPConfig         `toml:"http"`
	Logging      LoggingConfig      `toml:"logging"`
	TelegramBot  TelegramBotConfig  `toml:"telegram"`
}

type MercadoLibreConfig struct {
	BaseUrl      string        `toml:"base_url"`
	Token        string        `toml:"access_token"`
	RefreshToken string        `toml:"refresh_token"`
	ClientID     string        `toml:"client_id"`
	ClientSecret string        `toml:"client_secret"`
	SellerID     int64         `toml:"seller_id"`
	Timeout      time.Duration `toml:"timeout"`
	PageSize     int           `toml:"page_size"`
}

// SyncConfig holds the knobs of the extraction and sync jobs.
type SyncConfig struct {
	// SafetyFloor forces supplier stock at or below this value to zero.
	SafetyFloor int      `toml:"safety_floor"`
	Statuses    []string `toml:"statuses"`

	ThrottleEvery int           `toml:"throttle_every"`
	ThrottlePause time.Duration `toml:"throttle_pause"`

	DetailRetries      int           `toml:"detail_retries"`
	DetailTimeoutDelay time.Duration `toml:"detail_timeout_delay"`
	UpdateAttempts     int           `toml:"update_attempts"`
}

type HistoryConfig struct {
	Dir          string `toml:"dir"`
	MaxSnapshots int    `toml:"max_snapshots"`
}

type DatabaseConfig struct {
	Driver string `toml:"driver"`
	Path   string `toml:"path"`
}

type MysqlConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	Database string `toml:"database"`
}

type HTTPConfig struct {
	Addr            string        `toml:"addr"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
	MaxUploadBytes  int64         `toml:"max_upload_bytes"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type TelegramBotConfig struct {
	ChatId  string `toml:"chat_id"`
	Token   string `toml:"token"`
	BaseUrl string `toml:"base_url"`
}

const (
	DriverSqlite = "sqlite3"
	DriverMysql  = "mysql"
)

func Default() Config {
	return Config{
		MercadoLibre: MercadoLibreConfig{
			BaseUrl:  "https://api.mercadolibre.com",
			Timeout:  10 * time.Second,
			PageSize: 50,
		},
		Sync: SyncConfig{
			SafetyFloor:        3,
			Statuses:           []string{"active", "paused"},
			ThrottleEvery:      20,
			ThrottlePause:      time.Second,
			DetailRetries:      3,
			DetailTimeoutDelay: 2 * time.Second,
			UpdateAttempts:     3,
		},
		History: HistoryConfig{
			Dir:          "history",
			MaxSnapshots: 10,
		},
		Database: DatabaseConfig{
			Driver: DriverSqlite,
			Path:   "history/inventory-sync.db",
		},
		Mysql: MysqlConfig{
			Port: 3306,
		},
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ShutdownTimeout: 15 * time.Second,
			MaxUploadBytes:  20 << 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		TelegramBot: TelegramBotConfig{
			BaseUrl: "https://api.telegram.org",
		},
	}
}

func (c Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.MercadoLibre.BaseUrl) == "" {
		problems = append(problems, "mercadolibre base url is empty")
	}
	if c.MercadoLibre.PageSize <= 0 {
		problems = append(problems, "mercadolibre page size must be positive")
	}
	if c.Sync.SafetyFloor < 0 {
		problems = append(problems, "sync safety floor must be non-negative")
	}
	if len(c.Sync.Statuses) == 0 {
		problems = append(problems, "sync statuses are empty")
	}
	if c.Sync.UpdateAttempts <= 0 {
		problems = append(problems, "sync update attempts must be positive")
	}
	if c.Sync.DetailRetries < 0 {
		problems = append(problems, "sync detail retries must be non-negative")
	}
	if c.History.MaxSnapshots <= 0 {
		problems = append(problems, "history max snapshots must be positive")
	}
	switch c.Database.Driver {
	case DriverSqlite, DriverMysql:
	default:
		problems = append(problems, fmt.Sprintf("unsupported database driver %q", c.Database.Driver))
	}
	if len(problems) > 0 {
		return errors.New("invalid config: " + strings.Join(problems, "; "))
	}
	return nil
}
