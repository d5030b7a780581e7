package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// Client calls the external auth provider's admin API (GoTrue-compatible).
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
	Skip    bool
}

// New creates a client. With skip set, every call succeeds locally without a network round trip.
func New(baseURL, apiKey string, skip bool) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Skip:    skip,
		HTTP: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SignUp creates an auth identity and returns its id.
func (c *Client) SignUp(ctx context.Context, email, password string) (string, error) {
	if c.Skip {
		return uuid.NewString(), nil
	}
	if email == "" || password == "" {
		return "", fmt.Errorf("email and password required")
	}

	var out struct {
		ID   string `json:"id"`
		User *struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	err := c.do(ctx, http.MethodPost, "/auth/v1/signup", map[string]string{
		"email":    email,
		"password": password,
	}, &out)
	if err != nil {
		return "", err
	}
	if out.ID == "" && out.User != nil {
		out.ID = out.User.ID
	}
	if out.ID == "" {
		return "", fmt.Errorf("auth service returned no user id")
	}
	return out.ID, nil
}

// UpdatePassword sets a new password on the auth identity.
func (c *Client) UpdatePassword(ctx context.Context, authID, password string) error {
	if c.Skip {
		return nil
	}
	return c.do(ctx, http.MethodPut, "/auth/v1/admin/users/"+url.PathEscape(authID),
		map[string]string{"password": password}, nil)
}

// Delete removes the auth identity.
func (c *Client) Delete(ctx context.Context, authID string) error {
	if c.Skip {
		return nil
	}
	return c.do(ctx, http.MethodDelete, "/auth/v1/admin/users/"+url.PathEscape(authID), nil, nil)
}

// Health checks if the auth service is available.
func (c *Client) Health(ctx context.Context) error {
	if c.Skip {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/auth/v1/health", nil)
	if err != nil {
		return err
	}
	c.authorize(req)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("auth service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("auth service unhealthy: %s", resp.Status)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("auth service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.APIKey == "" {
		return
	}
	req.Header.Set("apikey", c.APIKey)
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
}

// decodeError surfaces the provider's own message so callers can pass it to clients.
func decodeError(resp *http.Response) error {
	bodyBytes, _ := io.ReadAll(resp.Body)
	var msg struct {
		Msg              string `json:"msg"`
		Message          string `json:"message"`
		ErrorDescription string `json:"error_description"`
	}
	if json.Unmarshal(bodyBytes, &msg) == nil {
		for _, m := range []string{msg.Msg, msg.Message, msg.ErrorDescription} {
			if m != "" {
				return fmt.Errorf("%s", m)
			}
		}
	}
	return fmt.Errorf("auth service error %s: %s", resp.Status, string(bodyBytes))
}
