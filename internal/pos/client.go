// Package pos integrates with the point-of-sale system: its external menu
// feeds the catalog index, and its delivery-order API receives the submitted
// order.
package pos

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"fulfillment_backend/platform/apperr"
	"fulfillment_backend/platform/config"
	"fulfillment_backend/platform/logger"
)

// tokenTTL bounds how long an exchanged access token is reused. The POS
// issues short-lived tokens; re-exchanging a little early avoids racing the
// expiry.
const tokenTTL = 10 * time.Minute

// Client is the POS API client. Access tokens are exchanged from the API
// login on demand and cached until they age out.
type Client struct {
	baseURL     string
	menuBaseURL string
	apiLogin    string
	http        *http.Client
	cfg         config.POSConfig
	log         *logger.Logger

	mu          sync.Mutex
	token       string
	tokenIssued time.Time
}

// NewClient creates a POS client from configuration.
func NewClient(cfg config.POSConfig, timeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		baseURL:     cfg.GetPOSBaseURL(),
		menuBaseURL: cfg.GetPOSMenuBaseURL(),
		apiLogin:    cfg.GetPOSAPILogin(),
		http:        &http.Client{Timeout: timeout},
		cfg:         cfg,
		log:         log,
	}
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Since(c.tokenIssued) < tokenTTL {
		return c.token, nil
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := c.post(ctx, c.baseURL, "/api/1/access_token", "", map[string]string{"apiLogin": c.apiLogin}, &resp); err != nil {
		return "", apperr.Remote("failed to exchange access token", err).WithOp("pos.accessToken")
	}
	if resp.Token == "" {
		return "", apperr.Remote("access token exchange returned empty token", nil).WithOp("pos.accessToken")
	}

	c.token = resp.Token
	c.tokenIssued = time.Now()
	return c.token, nil
}

// invalidateToken drops the cached token so the next call re-exchanges.
func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

// do performs an authenticated POST against the main API host.
func (c *Client) do(ctx context.Context, path string, body, out interface{}) error {
	return c.doAt(ctx, c.baseURL, path, body, out)
}

// doMenu performs an authenticated POST against the menu API host.
func (c *Client) doMenu(ctx context.Context, path string, body, out interface{}) error {
	return c.doAt(ctx, c.menuBaseURL, path, body, out)
}

func (c *Client) doAt(ctx context.Context, host, path string, body, out interface{}) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	err = c.post(ctx, host, path, token, body, out)
	if err != nil && isAuthError(err) {
		c.invalidateToken()
		token, tokenErr := c.accessToken(ctx)
		if tokenErr != nil {
			return tokenErr
		}
		err = c.post(ctx, host, path, token, body, out)
	}
	return err
}

func (c *Client) post(ctx context.Context, host, path, token string, body, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, host+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &statusError{code: resp.StatusCode, body: string(payload), path: path}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type statusError struct {
	code int
	body string
	path string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("pos api %s: status %d: %s", e.path, e.code, e.body)
}

func isAuthError(err error) bool {
	se, ok := err.(*statusError)
	return ok && se.code == http.StatusUnauthorized
}

// TerminalAlive reports whether the configured terminal group is online.
// Checked once per run before submission; an offline terminal aborts the run.
func (c *Client) TerminalAlive(ctx context.Context) (bool, error) {
	payload := map[string]interface{}{
		"organizationIds":  []string{c.cfg.GetPOSOrganizationID()},
		"terminalGroupIds": []string{c.cfg.GetPOSTerminalGroupID()},
	}
	var resp terminalGroupsAliveResponse
	if err := c.do(ctx, "/api/1/terminal_groups/is_alive", payload, &resp); err != nil {
		return false, apperr.Remote("failed to check terminal liveness", err).WithOp("pos.TerminalAlive")
	}
	for _, status := range resp.IsAliveStatus {
		if status.TerminalGroupID == c.cfg.GetPOSTerminalGroupID() {
			return status.IsAlive, nil
		}
	}
	return false, nil
}
