// Package client is a Go client for the equipment parameter API.
//
// The client holds no authentication state. Login and Register return a
// Session which is passed explicitly to every authenticated call, so one
// Client can serve several accounts at once.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// Client talks to one API server
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a client for the server at baseURL, e.g. "http://localhost:8080"
func New(baseURL string, opts ...Option) *Client {
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register creates an account and returns its session
func (c *Client) Register(ctx context.Context, username, email, password string) (*Session, error) {
	return c.authenticate(ctx, "/api/auth/register", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	})
}

// Login signs in and returns a new session
func (c *Client) Login(ctx context.Context, username, password string) (*Session, error) {
	return c.authenticate(ctx, "/api/auth/login", map[string]string{
		"username": username,
		"password": password,
	})
}

// Logout revokes the session's token
func (c *Client) Logout(ctx context.Context, s *Session) error {
	return c.doJSON(ctx, s, http.MethodPost, "/api/auth/logout", nil, nil)
}

// CurrentUser returns the account behind the session
func (c *Client) CurrentUser(ctx context.Context, s *Session) (*User, error) {
	var user User
	if err := c.doJSON(ctx, s, http.MethodGet, "/api/auth/user", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Upload sends a CSV file read from r under the given filename
func (c *Client) Upload(ctx context.Context, s *Session, filename string, r io.Reader) (*UploadResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, s, http.MethodPost, "/api/upload", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var result UploadResult
	if err := c.do(req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListDatasets returns the session owner's datasets, newest first
func (c *Client) ListDatasets(ctx context.Context, s *Session) ([]DatasetListItem, error) {
	var items []DatasetListItem
	if err := c.doJSON(ctx, s, http.MethodGet, "/api/datasets", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// GetDataset returns a dataset with every record
func (c *Client) GetDataset(ctx context.Context, s *Session, id uint) (*Dataset, error) {
	var dataset Dataset
	if err := c.doJSON(ctx, s, http.MethodGet, fmt.Sprintf("/api/datasets/%d", id), nil, &dataset); err != nil {
		return nil, err
	}
	return &dataset, nil
}

// GetSummary returns a dataset's aggregates
func (c *Client) GetSummary(ctx context.Context, s *Session, id uint) (*DatasetSummary, error) {
	var summary DatasetSummary
	if err := c.doJSON(ctx, s, http.MethodGet, fmt.Sprintf("/api/datasets/%d/summary", id), nil, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// DeleteDataset deletes a dataset and its records
func (c *Client) DeleteDataset(ctx context.Context, s *Session, id uint) error {
	return c.doJSON(ctx, s, http.MethodDelete, fmt.Sprintf("/api/datasets/%d", id), nil, nil)
}

// DownloadReport fetches the PDF report of a dataset
func (c *Client) DownloadReport(ctx context.Context, s *Session, id uint) (*Report, error) {
	req, err := c.newRequest(ctx, s, http.MethodGet, fmt.Sprintf("/api/datasets/%d/report/pdf", id), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/pdf")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}

	filename := fmt.Sprintf("equipment_report_%d.pdf", id)
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		filename = params["filename"]
	}
	return &Report{Filename: filename, Content: content}, nil
}

// IsNotFound reports whether err is a 404 from the API
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

func (c *Client) authenticate(ctx context.Context, path string, payload interface{}) (*Session, error) {
	var resp authResponse
	if err := c.doJSON(ctx, nil, http.MethodPost, path, payload, &resp); err != nil {
		return nil, err
	}
	return &Session{Token: resp.Token, User: resp.User}, nil
}

func (c *Client) doJSON(ctx context.Context, s *Session, method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, s, method, path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, s *Session, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if s != nil {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	var body errorBody
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err == nil && body.Error != "" {
		apiErr.Message = body.Error
		apiErr.Details = body.Details
	}
	return apiErr
}
