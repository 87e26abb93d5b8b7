package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const loginPath = "/api/v1/auth/login"

// HTTPAuthenticator probes the login endpoint over HTTP. A 401 maps to
// ErrNotReady so the poller keeps waiting; other failures abort.
type HTTPAuthenticator struct {
	baseURL string
	client  *http.Client
}

// NewHTTPAuthenticator builds an authenticator against the given API base
// URL. A nil http.Client gets a sane default timeout.
func NewHTTPAuthenticator(baseURL string, client *http.Client) *HTTPAuthenticator {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPAuthenticator{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

type loginRequestBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponseBody struct {
	Data struct {
		Token              string `json:"token"`
		SubscriptionActive bool   `json:"subscription_active"`
	} `json:"data"`
}

func (a *HTTPAuthenticator) Login(ctx context.Context, email, secret string) (*LoginResult, error) {
	body, err := json.Marshal(loginRequestBody{Email: email, Password: secret})
	if err != nil {
		return nil, fmt.Errorf("encode login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+loginPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("login request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrNotReady
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("login: unexpected status %d", resp.StatusCode)
	}

	var decoded loginResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode login response: %w", err)
	}

	return &LoginResult{
		Token:              decoded.Data.Token,
		SubscriptionActive: decoded.Data.SubscriptionActive,
	}, nil
}
