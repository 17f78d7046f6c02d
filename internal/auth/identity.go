package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	DefaultSignupURL = "https://identitytoolkit.googleapis.com/v1/accounts:signUp"
	DefaultTokenURL  = "https://securetoken.googleapis.com/v1/token"
)

// Tokens is what the identity service returns for a signup or refresh.
type Tokens struct {
	IDToken      string
	RefreshToken string
	SubjectID    string
}

// IdentityClient talks to the anonymous identity service over HTTP.
type IdentityClient struct {
	HTTP      *http.Client
	SignupURL string
	TokenURL  string
}

// NewIdentityClient returns a client for the default identity endpoints.
func NewIdentityClient() *IdentityClient {
	return &IdentityClient{
		HTTP:      &http.Client{Timeout: 30 * time.Second},
		SignupURL: DefaultSignupURL,
		TokenURL:  DefaultTokenURL,
	}
}

type signupResponse struct {
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	LocalID      string `json:"localId"`
}

type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	UserID       string `json:"user_id"`
}

// SignUp creates a new anonymous identity.
func (c *IdentityClient) SignUp(ctx context.Context, apiKey string) (Tokens, error) {
	var resp signupResponse
	body := map[string]any{"returnSecureToken": true}
	if err := c.post(ctx, c.SignupURL, apiKey, body, &resp); err != nil {
		return Tokens{}, fmt.Errorf("failed to sign up: %w", err)
	}
	if resp.LocalID == "" || resp.IDToken == "" {
		return Tokens{}, fmt.Errorf("failed to sign up: response missing identity")
	}
	return Tokens{IDToken: resp.IDToken, RefreshToken: resp.RefreshToken, SubjectID: resp.LocalID}, nil
}

// Refresh exchanges a refresh token for a new bearer token.
func (c *IdentityClient) Refresh(ctx context.Context, apiKey, refreshToken string) (Tokens, error) {
	var resp refreshResponse
	body := map[string]any{"grant_type": "refresh_token", "refresh_token": refreshToken}
	if err := c.post(ctx, c.TokenURL, apiKey, body, &resp); err != nil {
		return Tokens{}, fmt.Errorf("failed to refresh token: %w", err)
	}
	if resp.AccessToken == "" {
		return Tokens{}, fmt.Errorf("failed to refresh token: response missing access token")
	}
	return Tokens{IDToken: resp.AccessToken, RefreshToken: resp.RefreshToken, SubjectID: resp.UserID}, nil
}

func (c *IdentityClient) post(ctx context.Context, endpoint, apiKey string, body, out any) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	q := u.Query()
	q.Set("key", apiKey)
	u.RawQuery = q.Encode()

	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			// Best-effort body close.
			_ = cerr
		}
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %s: %s", resp.Status, truncate(string(data), 200))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
