// Package api is a client for the dashboard REST API.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"golang.org/x/oauth2"

	"github.com/greg-hellings/servicedash/pkg/model"
)

// Error is a non-2xx response. Message is the server's "error" field, or
// "HTTP <status>" when the body carries none.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Config configures a Client.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	Logger  *slog.Logger
	// HTTPClient overrides the pooled client; Token is then ignored.
	HTTPClient *http.Client
}

// Client calls the dashboard API. It never retries.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// New creates a Client. A bearer token, when set, is attached to every
// request through an oauth2 transport.
func New(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = cleanhttp.DefaultPooledClient()
		if cfg.Token != "" {
			hc.Transport = &oauth2.Transport{
				Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token}),
				Base:   hc.Transport,
			}
		}
	}
	if cfg.Timeout > 0 {
		hc.Timeout = cfg.Timeout
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    hc,
		logger:  logger,
	}
}

// ListServices returns every known service with running totals.
func (c *Client) ListServices(ctx context.Context) (*model.ServiceList, error) {
	var list model.ServiceList
	if err := c.get(ctx, "/services", &list); err != nil {
		return nil, err
	}
	if list.Services == nil {
		list.Services = []model.Service{}
	}
	return &list, nil
}

// GetService returns a single service.
func (c *Client) GetService(ctx context.Context, id string) (*model.Service, error) {
	var svc model.Service
	if err := c.get(ctx, "/services/"+url.PathEscape(id), &svc); err != nil {
		return nil, err
	}
	return &svc, nil
}

// FetchConfigFile returns configuration file index of service id with its
// content populated.
func (c *Client) FetchConfigFile(ctx context.Context, id string, index int) (model.ConfigFile, error) {
	var file model.ConfigFile
	path := "/services/" + url.PathEscape(id) + "/configs/" + strconv.Itoa(index)
	if err := c.get(ctx, path, &file); err != nil {
		return model.ConfigFile{}, err
	}
	return file, nil
}

// HostStats returns resource usage of the dashboard host.
func (c *Client) HostStats(ctx context.Context) (*model.HostStats, error) {
	var stats model.HostStats
	if err := c.get(ctx, "/host/stats", &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s failed: %w", path, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn("failed to close response body", "path", path, "error", closeErr)
		}
	}()
	c.logger.Debug("api request", "path", path, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &Error{Status: resp.StatusCode, Message: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return apiErr
	}
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		apiErr.Message = payload.Error
	}
	return apiErr
}
