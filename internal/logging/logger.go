package logging

import (
	"strings"

	"meli-inventory-sync/internal/config"
)

type LoggerService interface {
	Log(value string)
	LogError(value string, err error)
	LogWarning(value string)
	LogSuccess(value string)
}

// NewLogger returns a console logger, fanned out to Telegram when the bot
// credentials are configured.
func NewLogger(logCfg config.LoggingConfig, botCfg config.TelegramBotConfig) LoggerService {
	console := NewConsole(logCfg)
	telegram := NewTelegram(botCfg, nil)
	if telegram == nil {
		return console
	}
	return Multi{console, telegram}
}

// Multi forwards every message to each logger in order.
type Multi []LoggerService

func (m Multi) Log(value string) {
	for _, l := range m {
		if l != nil {
			l.Log(value)
		}
	}
}

func (m Multi) LogError(value string, err error) {
	for _, l := range m {
		if l != nil {
			l.LogError(value, err)
		}
	}
}

func (m Multi) LogWarning(value string) {
	for _, l := range m {
		if l != nil {
			l.LogWarning(value)
		}
	}
}

func (m Multi) LogSuccess(value string) {
	for _, l := range m {
		if l != nil {
			l.LogSuccess(value)
		}
	}
}

func errorText(value string, err error) string {
	v := strings.TrimSpace(value)
	if err == nil {
		return v
	}
	if v == "" {
		return err.Error()
	}
	return v + ": " + err.Error()
}
