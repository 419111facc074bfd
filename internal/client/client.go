// Package client calls the dashboard REST API on behalf of a signed-in admin.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gymii/dashboard/internal/errreport"
	"github.com/gymii/dashboard/internal/handler/dto"
	"github.com/gymii/dashboard/internal/model"
	"github.com/gymii/dashboard/internal/paging"
	"github.com/gymii/dashboard/internal/retention"
)

// TokenSource supplies the bearer token for each request.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode int
	// Status is the reason phrase, e.g. "Not Found".
	Status string
	// Message and Code come from the JSON error body when present.
	Message string
	Code    string
}

func (e *APIError) Error() string {
	return "API request failed: " + e.Status
}

// Client is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// New creates a Client for baseURL, e.g. http://localhost:5500/api.
// Failures wrap errreport.ErrInit.
func New(baseURL string, tokens TokenSource, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid API base URL %q", errreport.ErrInit, baseURL)
	}
	if tokens == nil {
		return nil, fmt.Errorf("%w: no token source", errreport.ErrInit)
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		tokens:  tokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}

	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func newAPIError(resp *http.Response) *APIError {
	status := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if status == "" {
		status = http.StatusText(resp.StatusCode)
	}

	apiErr := &APIError{StatusCode: resp.StatusCode, Status: status}
	var body dto.ErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err == nil {
		apiErr.Message = body.Error
		apiErr.Code = body.Code
	}
	return apiErr
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, "", out)
}

func (c *Client) sendJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	return c.do(ctx, method, path, body, "application/json", out)
}

// Refresh re-runs every snapshot query on the server.
func (c *Client) Refresh(ctx context.Context) (*dto.RefreshResponse, error) {
	var out dto.RefreshResponse
	if err := c.sendJSON(ctx, http.MethodPost, "/analytics/refresh", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Users returns every subscription profile keyed by id.
func (c *Client) Users(ctx context.Context) (map[string]model.User, error) {
	var out map[string]model.User
	if err := c.get(ctx, "/analytics/users", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// KPI returns the dashboard metrics.
func (c *Client) KPI(ctx context.Context) (*dto.KPIResponse, error) {
	var out dto.KPIResponse
	if err := c.get(ctx, "/analytics/kpi", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DAU returns daily active user rows.
func (c *Client) DAU(ctx context.Context) ([]model.DAU, error) {
	var out []model.DAU
	if err := c.get(ctx, "/analytics/dau", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Retention returns daily retention rows. An empty period returns every row.
func (c *Client) Retention(ctx context.Context, period retention.Period) ([]model.RetentionDay, error) {
	path := "/analytics/retention"
	if period != "" {
		path += "?period=" + url.QueryEscape(string(period))
	}
	var out []model.RetentionDay
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Cohorts returns the cohort retention report.
func (c *Client) Cohorts(ctx context.Context) (*retention.CohortReport, error) {
	var out retention.CohortReport
	if err := c.get(ctx, "/analytics/retention_by_cohort", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CostReport uploads a usage export and returns its token and dollar totals.
func (c *Client) CostReport(ctx context.Context, csv io.Reader) (*dto.CostReportResponse, error) {
	var out dto.CostReportResponse
	if err := c.do(ctx, http.MethodPost, "/cost/report", csv, "text/csv", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AdminUsers lists main database user rows.
func (c *Client) AdminUsers(ctx context.Context) ([]model.AdminUser, error) {
	var out []model.AdminUser
	if err := c.get(ctx, "/admin/", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SearchUsers returns one page of users matching q.
func (c *Client) SearchUsers(ctx context.Context, q string, page, size int) (*paging.Page[model.User], error) {
	v := url.Values{}
	if q != "" {
		v.Set("q", q)
	}
	if page > 0 {
		v.Set("page", strconv.Itoa(page))
	}
	if size > 0 {
		v.Set("page_size", strconv.Itoa(size))
	}

	path := "/admin/users"
	if len(v) > 0 {
		path += "?" + v.Encode()
	}
	var out paging.Page[model.User]
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// User returns one subscription profile.
func (c *Client) User(ctx context.Context, userID string) (*model.User, error) {
	var out model.User
	if err := c.get(ctx, "/admin/"+url.PathEscape(userID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Sessions returns a page of the user's activity sessions.
func (c *Client) Sessions(ctx context.Context, userID string, page int) (*paging.Page[model.ActivitySession], error) {
	path := "/admin/" + url.PathEscape(userID) + "/sessions"
	if page > 0 {
		path += "?page=" + strconv.Itoa(page)
	}
	var out paging.Page[model.ActivitySession]
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Comments lists a user's admin comments, newest first.
func (c *Client) Comments(ctx context.Context, userID string) ([]model.AdminComment, error) {
	var out []model.AdminComment
	if err := c.get(ctx, "/admin/"+url.PathEscape(userID)+"/comments", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateComment adds a comment. mood may be nil.
func (c *Client) CreateComment(ctx context.Context, userID, text string, mood *string) (*model.AdminComment, error) {
	in := dto.CreateCommentRequest{Text: text, Mood: mood}
	var out model.AdminComment
	if err := c.sendJSON(ctx, http.MethodPost, "/admin/"+url.PathEscape(userID)+"/comments", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CommentUpdate is a partial update. ClearMood sends an explicit null.
type CommentUpdate struct {
	Text      *string
	Mood      *string
	ClearMood bool
}

func (u CommentUpdate) body() map[string]any {
	body := map[string]any{}
	if u.Text != nil {
		body["text"] = *u.Text
	}
	switch {
	case u.ClearMood:
		body["mood"] = nil
	case u.Mood != nil:
		body["mood"] = *u.Mood
	}
	return body
}

// UpdateComment edits a comment.
func (c *Client) UpdateComment(ctx context.Context, commentID int64, upd CommentUpdate) (*model.AdminComment, error) {
	var out model.AdminComment
	path := "/admin/comments/" + strconv.FormatInt(commentID, 10)
	if err := c.sendJSON(ctx, http.MethodPut, path, upd.body(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteComment removes a comment.
func (c *Client) DeleteComment(ctx context.Context, commentID int64) error {
	path := "/admin/comments/" + strconv.FormatInt(commentID, 10)
	return c.do(ctx, http.MethodDelete, path, nil, "", nil)
}

// Me returns the identity the server sees for the current token.
func (c *Client) Me(ctx context.Context) (*dto.MeResponse, error) {
	var out dto.MeResponse
	if err := c.get(ctx, "/admin/me", &out); err != nil {
		return nil, err
	}
	return &out, nil
}
