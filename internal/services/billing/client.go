// Package billing is the client for the 88code billing API.
package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/j-veylop/credits-dashboard-tui/internal/logger"
	"github.com/j-veylop/credits-dashboard-tui/internal/models"
	"github.com/j-veylop/credits-dashboard-tui/internal/version"
)

// API paths relative to the base URL.
const (
	pathLoginInfo     = "/admin-api/login/getLoginInfo"
	pathSubscriptions = "/admin-api/cc-admin/system/subscription/my"
	pathDashboard     = "/admin-api/cc-admin/user/dashboard"
	pathUsageTrend    = "/admin-api/cc-admin/user/usage-trend"
	pathAutoReset     = "/admin-api/cc-admin/system/subscription/my/auto-reset/{id}"
	pathResetCredits  = "/admin-api/cc-admin/system/subscription/my/reset-credits/{id}"
)

const maxErrorBody = 256

// TokenSource supplies the bearer token. Invalidate is called when the API
// rejects it.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

// envelope is the JSON wrapper every endpoint responds with.
type envelope[T any] struct {
	Data     T      `json:"data"`
	Msg      string `json:"msg"`
	Code     int    `json:"code"`
	DataType int    `json:"dataType"`
	OK       bool   `json:"ok"`
}

// Client talks to the billing API.
type Client struct {
	http   *resty.Client
	tokens TokenSource
	log    *slog.Logger
}

// NewClient creates a client for baseURL.
func NewClient(baseURL string, timeout time.Duration, tokens TokenSource) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", version.UserAgent())

	return &Client{
		http:   httpClient,
		tokens: tokens,
		log:    logger.With("billing"),
	}
}

// SetTransport replaces the HTTP transport.
func (c *Client) SetTransport(rt http.RoundTripper) *Client {
	c.http.SetTransport(rt)
	return c
}

// FetchSubscriptions returns the running subscriptions of the account.
func (c *Client) FetchSubscriptions(ctx context.Context) ([]models.Subscription, error) {
	all, err := call[[]models.Subscription](ctx, c, c.http.R().SetContext(ctx), http.MethodGet, pathSubscriptions)
	if err != nil {
		return nil, err
	}

	active := make([]models.Subscription, 0, len(all))
	for i := range all {
		if all[i].IsRunning() {
			active = append(active, all[i])
		}
	}
	c.log.Debug("fetched subscriptions", "total", len(all), "active", len(active))
	return active, nil
}

// ResetCredits asks the billing service to refill a subscription.
func (c *Client) ResetCredits(ctx context.Context, subscriptionID int64) error {
	req := c.http.R().SetContext(ctx).
		SetPathParam("id", strconv.FormatInt(subscriptionID, 10))
	_, err := call[json.RawMessage](ctx, c, req, http.MethodPost, pathResetCredits)
	return err
}

// ToggleAutoReset sets whether the billing service refills a subscription
// by itself when it hits zero.
func (c *Client) ToggleAutoReset(ctx context.Context, subscriptionID int64, enabled bool) error {
	req := c.http.R().SetContext(ctx).
		SetPathParam("id", strconv.FormatInt(subscriptionID, 10)).
		SetQueryParam("autoResetWhenZero", strconv.FormatBool(enabled))
	_, err := call[json.RawMessage](ctx, c, req, http.MethodPost, pathAutoReset)
	return err
}

// FetchDashboard returns the account usage overview.
func (c *Client) FetchDashboard(ctx context.Context) (*models.Dashboard, error) {
	data, err := call[models.Dashboard](ctx, c, c.http.R().SetContext(ctx), http.MethodGet, pathDashboard)
	if err != nil {
		return nil, err
	}
	return &data, nil
}

// FetchLoginInfo returns the account the token belongs to.
func (c *Client) FetchLoginInfo(ctx context.Context) (*models.LoginInfo, error) {
	data, err := call[models.LoginInfo](ctx, c, c.http.R().SetContext(ctx), http.MethodGet, pathLoginInfo)
	if err != nil {
		return nil, err
	}
	return &data, nil
}

// FetchUsageTrend returns usage buckets for the last days.
func (c *Client) FetchUsageTrend(ctx context.Context, days int, granularity string) ([]models.UsageTrendPoint, error) {
	req := c.http.R().SetContext(ctx).SetQueryParams(map[string]string{
		"days":        strconv.Itoa(days),
		"granularity": granularity,
	})
	return call[[]models.UsageTrendPoint](ctx, c, req, http.MethodGet, pathUsageTrend)
}

func call[T any](ctx context.Context, c *Client, req *resty.Request, method, path string) (T, error) {
	var zero T

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return zero, err
	}

	resp, err := req.SetAuthToken(token).Execute(method, path)
	if err != nil {
		return zero, fmt.Errorf("%s %s: %w", method, path, err)
	}

	if resp.IsError() {
		httpErr := &HTTPError{StatusCode: resp.StatusCode(), Body: truncate(resp.String(), maxErrorBody)}
		if IsUnauthorized(httpErr) {
			c.tokens.Invalidate()
		}
		c.log.Warn("request failed", "method", method, "path", path, "status", resp.StatusCode())
		return zero, httpErr
	}

	var env envelope[T]
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return zero, fmt.Errorf("%s %s: malformed response: %w", method, path, err)
	}

	if !env.OK {
		apiErr := &APIError{Code: env.Code, Message: env.Msg}
		if IsUnauthorized(apiErr) {
			c.tokens.Invalidate()
		}
		c.log.Warn("request rejected", "method", method, "path", path, "code", env.Code, "msg", env.Msg)
		return zero, apiErr
	}

	return env.Data, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
