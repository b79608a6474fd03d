package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"dose-mate/internal/platform/httpclient"
	"dose-mate/internal/ports/auth"
)

var (
	ErrNotConfigured = errors.New("identity client not configured")
	ErrUpstream      = errors.New("identity upstream error")
)

const verifyPath = "/v1/tokens/verify"

type Config struct {
	BaseURL string
	APIKey  string

	// Si está vacío se usa "X-Api-Key".
	APIKeyHeader string

	Timeout time.Duration
}

type Client struct {
	http   *httpclient.Client
	apiKey string
}

func NewClient(cfg Config) (*Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	hc, err := httpclient.New(cfg.BaseURL, timeout)
	if err != nil {
		return nil, err
	}

	h := strings.TrimSpace(cfg.APIKeyHeader)
	if h == "" {
		h = "X-Api-Key"
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	hc.Headers[h] = apiKey

	return &Client{http: hc, apiKey: apiKey}, nil
}

func (c *Client) IsConfigured() bool {
	return c != nil && c.http != nil && c.http.BaseURL != "" && c.apiKey != ""
}

type verifyRequest struct {
	Token string `json:"token"`
}

type verifyResponse struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	TokenType string `json:"token_type"` // "user" | "device"
}

// VerifyToken pide al servicio de identidad los claims de un token.
// 401/403 se devuelven como auth.ErrUnauthorized.
func (c *Client) VerifyToken(ctx context.Context, token string) (auth.Claims, error) {
	if !c.IsConfigured() {
		return auth.Claims{}, ErrNotConfigured
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return auth.Claims{}, auth.ErrUnauthorized
	}

	var out verifyResponse
	err := c.http.DoJSON(ctx, http.MethodPost, verifyPath, map[string]string{
		"Authorization": "Bearer " + token,
	}, verifyRequest{Token: token}, &out)
	if err != nil {
		if httpclient.IsDenied(err) {
			return auth.Claims{}, auth.ErrUnauthorized
		}
		return auth.Claims{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	userID := strings.TrimSpace(out.UserID)
	if userID == "" {
		return auth.Claims{}, fmt.Errorf("%w: response missing user_id", ErrUpstream)
	}

	return auth.Claims{
		UserID: userID,
		Email:  strings.TrimSpace(out.Email),
		Device: strings.EqualFold(strings.TrimSpace(out.TokenType), "device"),
	}, nil
}
