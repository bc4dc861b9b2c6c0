package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/palpamed/palpbridge/internal/logging"
)

// DefaultTimeout is the default HTTP request timeout
const DefaultTimeout = 10 * time.Second

// Client is an HTTP client for the patient records backend. It caches the
// bearer token obtained from Authenticate and attaches it to every
// subsequent call. There is no expiry tracking and no refresh-on-401: a
// rejected token stays cached until a caller explicitly re-authenticates.
type Client struct {
	// BaseURL is the backend base URL (e.g. "https://api.example.com")
	BaseURL string

	// HTTPClient is the underlying HTTP client
	HTTPClient *http.Client

	// tokenMutex protects the cached token
	tokenMutex sync.RWMutex

	// token is the cached bearer token (empty = not authenticated yet)
	token string
}

// NewClient creates a new backend client with the default timeout.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
	}
}

// SetTimeout sets the HTTP request timeout
func (c *Client) SetTimeout(timeout time.Duration) {
	c.HTTPClient.Timeout = timeout
}

// Token returns the cached bearer token, if any.
func (c *Client) Token() (string, bool) {
	c.tokenMutex.RLock()
	defer c.tokenMutex.RUnlock()
	return c.token, c.token != ""
}

// tokenResponse is the body of a successful POST /auth/token.
type tokenResponse struct {
	Token string `json:"token"`
}

// Authenticate requests a fresh bearer token with the shared password and
// caches it on success. On failure the previously cached token, if any, is
// left untouched.
func (c *Client) Authenticate(ctx context.Context, password string) (string, error) {
	body, err := json.Marshal(map[string]string{"password": password})
	if err != nil {
		return "", NewParseError("failed to encode credentials", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/auth/token", bytes.NewReader(body))
	if err != nil {
		return "", NewNetworkError("failed to create auth request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", NewNetworkError("auth request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", NewAuthError("backend rejected credentials", resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", NewHTTPError(resp.StatusCode, fmt.Sprintf("unexpected status code: %d", resp.StatusCode))
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", NewNetworkError("failed to read auth response", err)
	}

	var tr tokenResponse
	if err := json.Unmarshal(respBody, &tr); err != nil {
		return "", NewParseError("failed to parse auth response", err)
	}
	if tr.Token == "" {
		return "", NewParseError("auth response carried no token", nil)
	}

	c.tokenMutex.Lock()
	c.token = tr.Token
	c.tokenMutex.Unlock()

	logging.Info("Bearer token cached")
	return tr.Token, nil
}

// GetPatient fetches a single patient record. The raw backend JSON is
// returned so it can be forwarded to clients verbatim.
func (c *Client) GetPatient(ctx context.Context, patientID string) (json.RawMessage, error) {
	return c.doWithToken(ctx, http.MethodGet, "/patient/"+url.PathEscape(patientID), nil)
}

// GetAllPatients fetches the full patient list as raw backend JSON.
func (c *Client) GetAllPatients(ctx context.Context) (json.RawMessage, error) {
	return c.doWithToken(ctx, http.MethodGet, "/patient", nil)
}

// PostPalpation posts a completed session's region mapping for a patient.
// It satisfies the session package's Poster interface.
func (c *Client) PostPalpation(ctx context.Context, patientID string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return NewParseError("failed to encode palpation data", err)
	}
	_, err = c.doWithToken(ctx, http.MethodPost, "/patient/data/"+url.PathEscape(patientID), body)
	return err
}

// doWithToken performs an authenticated request. If no token is cached the
// call fails fast without touching the network, which is what the dispatch
// layer reports back to clients as a structured failure.
func (c *Client) doWithToken(ctx context.Context, method, path string, body []byte) (json.RawMessage, error) {
	token, ok := c.Token()
	if !ok {
		logging.Warn("Authenticated call without cached token",
			zap.String("method", method),
			zap.String("path", path),
		)
		return nil, NewTokenMissingError()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, NewNetworkError("failed to create request", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, NewNetworkError(fmt.Sprintf("%s %s failed", method, path), err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewNetworkError("failed to read response body", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, NewAuthError("backend rejected token", resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, NewHTTPError(resp.StatusCode, fmt.Sprintf("%s %s returned status %d", method, path, resp.StatusCode))
	}

	return respBody, nil
}
