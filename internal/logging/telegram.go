package logging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"meli-inventory-sync/internal/config"
)

type Telegram struct {
	Creds      config.TelegramBotConfig
	httpClient *http.Client
}

type telegramRequest struct {
	ChatId string `json:"chat_id"`
	Text   string `json:"text"`
}

const (
	iconInfo    = "ℹ️"
	iconError   = "❌"
	iconWarning = "⚠️"
	iconSuccess = "✅"

	defaultTelegramBaseUrl = "https://api.telegram.org"
)

// NewTelegram returns nil when the chat id or bot token is missing.
func NewTelegram(cfg config.TelegramBotConfig, httpClient *http.Client) *Telegram {
	if strings.TrimSpace(cfg.ChatId) == "" || strings.TrimSpace(cfg.Token) == "" {
		return nil
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Telegram{Creds: cfg, httpClient: httpClient}
}

func (c *Telegram) Log(value string) {
	if c == nil {
		return
	}
	_ = c.sendRequest(formatMessage(iconInfo, "INFO", value))
}

func (c *Telegram) LogError(value string, err error) {
	if c == nil {
		return
	}
	_ = c.sendRequest(formatMessage(iconError, "ERROR", errorText(value, err)))
}

func (c *Telegram) LogWarning(value string) {
	if c == nil {
		return
	}
	_ = c.sendRequest(formatMessage(iconWarning, "WARNING", value))
}

func (c *Telegram) LogSuccess(value string) {
	if c == nil {
		return
	}
	_ = c.sendRequest(formatMessage(iconSuccess, "SUCCESS", value))
}

func formatMessage(icon, level, value string) string {
	v := strings.TrimSpace(value)
	if v == "" {
		v = "-"
	}
	return fmt.Sprintf("%s %s: %s", icon, level, v)
}

func (c *Telegram) sendRequest(value string) error {
	baseUrl := strings.TrimRight(strings.TrimSpace(c.Creds.BaseUrl), "/")
	if baseUrl == "" {
		baseUrl = defaultTelegramBaseUrl
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", baseUrl, c.Creds.Token)

	reqBody := telegramRequest{
		ChatId: c.Creds.ChatId,
		Text:   value,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Post(url, "application/json", bytes.NewReader(bodyBytes))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram send failed: %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
	}
	return nil
}
