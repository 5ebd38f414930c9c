package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

func requriedString(key string) (string, error) {
	variable, isOk := os.LookupEnv(key)
	if !isOk || variable == "" {
		return "", fmt.Errorf("missing requried env var: %s", key)
	}
	return variable, nil
}

func stringWithDefault(key, def string) string {
	variable, isOk := os.LookupEnv(key)
	if !isOk || variable == "" {
		return def
	}
	return variable
}

func intWithDefault(key string, def int) (int, error) {
	variable, isOk := os.LookupEnv(key)
	if !isOk || variable == "" {
		return def, nil
	}
	number, err := strconv.Atoi(strings.TrimSpace(variable))
	if err != nil {
		return 0, fmt.Errorf("invalid int for %s: %w", key, err)
	}
	return number, nil
}

func int64WithDefault(key string, def int64) (int64, error) {
	variable, isOk := os.LookupEnv(key)
	if !isOk || variable == "" {
		return def, nil
	}
	number, err := strconv.ParseInt(strings.TrimSpace(variable), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid int for %s: %w", key, err)
	}
	return number, nil
}

// durationWithDefault reads an integer count of unit from key.
func durationWithDefault(key string, unit time.Duration, def time.Duration) (time.Duration, error) {
	variable, isOk := os.LookupEnv(key)
	if !isOk || variable == "" {
		return def, nil
	}
	number, err := strconv.Atoi(strings.TrimSpace(variable))
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	return time.Duration(number) * unit, nil
}

func listWithDefault(key string, def []string) []string {
	variable, isOk := os.LookupEnv(key)
	if !isOk || strings.TrimSpace(variable) == "" {
		return def
	}
	parts := strings.Split(variable, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func applyEnv(cfg *Config) error {
	var err error

	ml := &cfg.MercadoLibre
	ml.BaseUrl = stringWithDefault("ML_BASE_URL", ml.BaseUrl)
	ml.Token = stringWithDefault("ML_ACCESS_TOKEN", ml.Token)
	ml.RefreshToken = stringWithDefault("ML_REFRESH_TOKEN", ml.RefreshToken)
	ml.ClientID = stringWithDefault("ML_CLIENT_ID", ml.ClientID)
	ml.ClientSecret = stringWithDefault("ML_CLIENT_SECRET", ml.ClientSecret)
	if ml.SellerID, err = int64WithDefault("ML_SELLER_ID", ml.SellerID); err != nil {
		return err
	}
	if ml.Timeout, err = durationWithDefault("ML_TIMEOUT_SECONDS", time.Second, ml.Timeout); err != nil {
		return err
	}
	if ml.PageSize, err = intWithDefault("ML_PAGE_SIZE", ml.PageSize); err != nil {
		return err
	}

	sync := &cfg.Sync
	if sync.SafetyFloor, err = intWithDefault("SYNC_SAFETY_FLOOR", sync.SafetyFloor); err != nil {
		return err
	}
	sync.Statuses = listWithDefault("SYNC_STATUSES", sync.Statuses)
	if sync.ThrottleEvery, err = intWithDefault("SYNC_THROTTLE_EVERY", sync.ThrottleEvery); err != nil {
		return err
	}
	if sync.ThrottlePause, err = durationWithDefault("SYNC_THROTTLE_PAUSE_MS", time.Millisecond, sync.ThrottlePause); err != nil {
		return err
	}

	cfg.History.Dir = stringWithDefault("HISTORY_DIR", cfg.History.Dir)
	if cfg.History.MaxSnapshots, err = intWithDefault("HISTORY_MAX_SNAPSHOTS", cfg.History.MaxSnapshots); err != nil {
		return err
	}

	cfg.Database.Driver = stringWithDefault("DB_DRIVER", cfg.Database.Driver)
	cfg.Database.Path = stringWithDefault("DB_PATH", cfg.Database.Path)

	my := &cfg.Mysql
	my.Host = stringWithDefault("MYSQL_HOST", my.Host)
	if my.Port, err = intWithDefault("MYSQL_PORT", my.Port); err != nil {
		return err
	}
	my.Username = stringWithDefault("MYSQL_USERNAME", my.Username)
	my.Password = stringWithDefault("MYSQL_PASSWORD", my.Password)
	my.Database = stringWithDefault("MYSQL_DATABASE", my.Database)

	cfg.HTTP.Addr = stringWithDefault("HTTP_ADDR", cfg.HTTP.Addr)
	cfg.Logging.Level = stringWithDefault("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = stringWithDefault("LOG_FORMAT", cfg.Logging.Format)

	cfg.TelegramBot.ChatId = stringWithDefault("TELEGRAM_CHAT_ID", cfg.TelegramBot.ChatId)
	cfg.TelegramBot.Token = stringWithDefault("TELEGRAM_BOT_TOKEN", cfg.TelegramBot.Token)
	return nil
}
