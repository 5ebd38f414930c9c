package mercadolibre

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"meli-inventory-sync/internal/adapters/mercadolibre/dto"
	"meli-inventory-sync/internal/config"
)

const tokenEndpoint = "/oauth/token"

// TokenSource holds the bearer token and, when the app credentials and a
// refresh token are configured, can exchange the refresh token for a new one.
type TokenSource struct {
	mu           sync.Mutex
	baseUrl      string
	accessToken  string
	refreshToken string
	clientID     string
	clientSecret string
	httpClient   *http.Client
}

func NewTokenSource(cfg config.MercadoLibreConfig, httpClient *http.Client) *TokenSource {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &TokenSource{
		baseUrl:      strings.TrimRight(strings.TrimSpace(cfg.BaseUrl), "/"),
		accessToken:  strings.TrimSpace(cfg.Token),
		refreshToken: strings.TrimSpace(cfg.RefreshToken),
		clientID:     strings.TrimSpace(cfg.ClientID),
		clientSecret: strings.TrimSpace(cfg.ClientSecret),
		httpClient:   httpClient,
	}
}

func (t *TokenSource) Token() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.accessToken
}

func (t *TokenSource) CanRefresh() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.refreshToken != "" && t.clientID != "" && t.clientSecret != ""
}

// Refresh exchanges the refresh token. Mercado Libre rotates refresh tokens,
// so the new one replaces the old.
func (t *TokenSource) Refresh(ctx context.Context) error {
	if !t.CanRefresh() {
		return errors.New("mercadolibre token refresh not configured")
	}
	t.mu.Lock()
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {t.clientID},
		"client_secret": {t.clientSecret},
		"refresh_token": {t.refreshToken},
	}
	baseUrl := t.baseUrl
	t.mu.Unlock()

	token, err := requestToken(ctx, t.httpClient, baseUrl, form)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.accessToken = token.AccessToken
	if token.RefreshToken != "" {
		t.refreshToken = token.RefreshToken
	}
	t.mu.Unlock()
	return nil
}

// RequestClientCredentials performs the client_credentials grant.
func RequestClientCredentials(ctx context.Context, httpClient *http.Client, baseUrl, clientID, clientSecret string) (*dto.TokenResponse, error) {
	if strings.TrimSpace(clientID) == "" || strings.TrimSpace(clientSecret) == "" {
		return nil, errors.New("mercadolibre client id and secret are required")
	}
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {strings.TrimSpace(clientID)},
		"client_secret": {strings.TrimSpace(clientSecret)},
	}
	return requestToken(ctx, httpClient, strings.TrimRight(strings.TrimSpace(baseUrl), "/"), form)
}

// RequestRefreshToken performs the refresh_token grant without a TokenSource.
func RequestRefreshToken(ctx context.Context, httpClient *http.Client, baseUrl, clientID, clientSecret, refreshToken string) (*dto.TokenResponse, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, errors.New("mercadolibre refresh token is required")
	}
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {strings.TrimSpace(clientID)},
		"client_secret": {strings.TrimSpace(clientSecret)},
		"refresh_token": {strings.TrimSpace(refreshToken)},
	}
	return requestToken(ctx, httpClient, strings.TrimRight(strings.TrimSpace(baseUrl), "/"), form)
}

func requestToken(ctx context.Context, httpClient *http.Client, baseUrl string, form url.Values) (*dto.TokenResponse, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseUrl+tokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mercadolibre token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newStatusError(resp.StatusCode, resp.Status, body)
	}

	var token dto.TokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("mercadolibre token decode: %w", err)
	}
	if strings.TrimSpace(token.AccessToken) == "" {
		return nil, errors.New("mercadolibre token response missing access_token")
	}
	return &token, nil
}
