// Package api provides the typed HTTP client for the chemical-equipment
// service. It covers the full remote surface consumed by the front-ends:
// token issuance, account signup, CSV upload, upload history, and the
// binary PDF report.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// DefaultBaseURL is the fixed origin of the equipment service.
const DefaultBaseURL = "http://127.0.0.1:8001"

// tokenScheme is the authorization scheme the service expects
// (DRF TokenAuthentication: "Authorization: Token <token>").
const tokenScheme = "Token"

// Config holds the configuration for an equipment service client.
type Config struct {
	// BaseURL is the service origin. Empty uses DefaultBaseURL.
	BaseURL string

	// Token is the bearer credential attached to every request.
	// Empty produces an unauthenticated client (login/signup only).
	Token string

	// Timeout bounds each request. Zero disables the client-level timeout.
	Timeout time.Duration
}

// Client is an immutable HTTP client for the equipment service.
// Credentials are injected at construction; controllers rebuild the
// client on login and logout instead of mutating shared headers.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client from config. A non-empty token is carried by an
// oauth2 static token source so every request gets the Token scheme header.
func New(cfg Config) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}

	hc := &http.Client{Timeout: cfg.Timeout}
	if cfg.Token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: cfg.Token,
			TokenType:   tokenScheme,
		})
		hc.Transport = &oauth2.Transport{Source: ts, Base: http.DefaultTransport}
	}

	return &Client{baseURL: base, http: hc}
}

// BaseURL returns the configured service origin.
func (c *Client) BaseURL() string { return c.baseURL }

// APIError describes a non-2xx response from the service.
type APIError struct {
	Op         string // operation name ("login", "upload", ...)
	StatusCode int
	Message    string // server-provided message, when present
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s: unexpected status %d", e.Op, e.StatusCode)
}

// IsUnauthorized reports whether err is an APIError with a 401 status.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// apiError builds an APIError from a response, draining a short error body
// of the form {"error": "..."} or {"detail": "..."} when the service sent one.
func apiError(op string, resp *http.Response) *APIError {
	out := &APIError{Op: op, StatusCode: resp.StatusCode}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return out
	}
	var payload struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &payload) == nil {
		if payload.Error != "" {
			out.Message = payload.Error
		} else if payload.Detail != "" {
			out.Message = payload.Detail
		}
	}
	return out
}

// Login exchanges credentials for a token via POST /api/token/.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	payload := map[string]string{"username": username, "password": password}

	var out struct {
		Token string `json:"token"`
	}
	if err := c.postJSON(ctx, "login", "/api/token/", payload, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", fmt.Errorf("login: service returned no token")
	}
	return out.Token, nil
}

// Signup registers a new account via POST /api/equipment/signup/.
// Any 2xx means created; the response body carries nothing the client needs.
func (c *Client) Signup(ctx context.Context, username, password string) error {
	payload := map[string]string{"username": username, "password": password}
	return c.postJSON(ctx, "signup", "/api/equipment/signup/", payload, nil)
}

// UploadCSV submits a CSV as multipart field "file" via
// POST /api/equipment/upload/ and returns the computed summary.
func (c *Client) UploadCSV(ctx context.Context, filename string, r io.Reader) (*UploadResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("upload: read file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/equipment/upload/", &buf)
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}
	defer closeBody(resp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apiError("upload", resp)
	}

	var result UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("upload: decode response: %w", err)
	}
	return &result, nil
}

// History fetches the most recent upload sessions (at most five,
// most-recent-first) via GET /api/equipment/history/.
func (c *Client) History(ctx context.Context) ([]HistoryEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/equipment/history/", nil)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	defer closeBody(resp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apiError("history", resp)
	}

	var entries []HistoryEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("history: decode response: %w", err)
	}
	return entries, nil
}

// DownloadReport streams the binary PDF report from
// GET /api/equipment/report/ into w. The report contents are determined
// server-side; the client treats the payload as opaque.
func (c *Client) DownloadReport(ctx context.Context, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/equipment/report/", nil)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	defer closeBody(resp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiError("report", resp)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("report: write payload: %w", err)
	}
	return nil
}

// postJSON posts a JSON payload and decodes a JSON response into out
// (skipped when out is nil).
func (c *Client) postJSON(ctx context.Context, op, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer closeBody(resp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiError(op, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func closeBody(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}
