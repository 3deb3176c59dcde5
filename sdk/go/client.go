package studiosdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Script Studio HTTP API client. When a CSRF secret
// is active on the server, call FetchCSRFToken once before mutating.
type Client struct {
	BaseURL    string
	CSRFToken  string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Order represents the API order model.
type Order struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Status      string  `json:"status"`
	Partition   string  `json:"partition"`
	Priority    string  `json:"priority"`
	CreatedAt   string  `json:"created_at"`
	AcceptedAt  *string `json:"accepted_at,omitempty"`
	DeclinedAt  *string `json:"declined_at,omitempty"`
	CompletedAt *string `json:"completed_at,omitempty"`
}

// Artifact represents a sample or script deliverable.
type Artifact struct {
	ID            string  `json:"id"`
	OrderID       string  `json:"order_id"`
	Kind          string  `json:"kind"`
	Title         string  `json:"title"`
	Body          string  `json:"body,omitempty"`
	Quality       string  `json:"quality"`
	Week          string  `json:"week"`
	CreatedAt     string  `json:"created_at"`
	APICost       float64 `json:"api_cost"`
	ResearchCalls int     `json:"research_calls"`
	ResearchCost  float64 `json:"research_cost"`
}

// WeekGroup is one calendar week's artifacts.
type WeekGroup struct {
	Week      string     `json:"week"`
	Artifacts []Artifact `json:"artifacts"`
}

// Dashboard holds aggregate counters.
type Dashboard struct {
	TotalOrders       int     `json:"total_orders"`
	OpenOrders        int     `json:"open_orders"`
	ActiveOrders      int     `json:"active_orders"`
	CompletedOrders   int     `json:"completed_orders"`
	DeclinedOrders    int     `json:"declined_orders"`
	TotalSamples      int     `json:"total_samples"`
	TotalScripts      int     `json:"total_scripts"`
	APICostTotal      float64 `json:"api_cost_total"`
	ResearchCostTotal float64 `json:"research_cost_total"`
}

// Event represents a journal entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id"`
	Payload    map[string]any `json:"payload"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// FetchCSRFToken retrieves the signed CSRF cookie and stores its value
// for subsequent mutating calls.
func (c *Client) FetchCSRFToken(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base()+"/v1/csrf", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	for _, cookie := range resp.Cookies() {
		if cookie.Name == "studio_csrf" {
			c.CSRFToken = cookie.Value
		}
	}
	return nil
}

// CreateOrder creates an order in the open partition.
func (c *Client) CreateOrder(ctx context.Context, title, description string) (Order, error) {
	body := map[string]any{
		"title":       title,
		"description": description,
	}
	var resp Order
	err := c.do(ctx, http.MethodPost, "v1/orders", body, &resp)
	return resp, err
}

// ListOrders returns orders, optionally filtered to one partition.
func (c *Client) ListOrders(ctx context.Context, partition string) ([]Order, error) {
	endpoint := "v1/orders"
	if partition != "" {
		endpoint += "?partition=" + url.QueryEscape(partition)
	}
	var resp []Order
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// GetOrder fetches one order by id.
func (c *Client) GetOrder(ctx context.Context, id string) (Order, error) {
	var resp Order
	err := c.do(ctx, http.MethodGet, "v1/orders/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// SetOrderStatus moves an order to the target status.
func (c *Client) SetOrderStatus(ctx context.Context, id, status string) (Order, error) {
	var resp Order
	endpoint := fmt.Sprintf("v1/orders/%s/status", url.PathEscape(id))
	err := c.do(ctx, http.MethodPatch, endpoint, map[string]any{"status": status}, &resp)
	return resp, err
}

// DeleteOrder removes an order and its artifacts.
func (c *Client) DeleteOrder(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "v1/orders/"+url.PathEscape(id), nil, nil)
}

// Dashboard returns the aggregate stats.
func (c *Client) Dashboard(ctx context.Context) (Dashboard, error) {
	var resp Dashboard
	err := c.do(ctx, http.MethodGet, "v1/dashboard", nil, &resp)
	return resp, err
}

// CreateArtifact records a deliverable against an order.
func (c *Client) CreateArtifact(ctx context.Context, orderID, title, body, quality string) (Artifact, error) {
	payload := map[string]any{
		"title":   title,
		"body":    body,
		"quality": quality,
	}
	var resp Artifact
	endpoint := fmt.Sprintf("v1/orders/%s/artifacts", url.PathEscape(orderID))
	err := c.do(ctx, http.MethodPost, endpoint, payload, &resp)
	return resp, err
}

// ListArtifacts returns an order's artifacts grouped by calendar week.
func (c *Client) ListArtifacts(ctx context.Context, orderID string) ([]WeekGroup, error) {
	var resp []WeekGroup
	endpoint := fmt.Sprintf("v1/orders/%s/artifacts", url.PathEscape(orderID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// AddResearchCall records one research API call against a script.
func (c *Client) AddResearchCall(ctx context.Context, artifactID string, cost float64) (Artifact, error) {
	var resp Artifact
	endpoint := fmt.Sprintf("v1/artifacts/%s/research-calls", url.PathEscape(artifactID))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{"cost": cost}, &resp)
	return resp, err
}

// RenderDocument downloads the print payload for an artifact and returns
// the bytes plus the server-chosen filename.
func (c *Client) RenderDocument(ctx context.Context, artifactID string) ([]byte, string, error) {
	endpoint := fmt.Sprintf("%s/v1/artifacts/%s/document", c.base(), url.PathEscape(artifactID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	if resp.StatusCode >= 300 {
		return nil, "", &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	filename := filenameFromDisposition(resp.Header.Get("Content-Disposition"))
	return data, filename, nil
}

// Events returns recent journal entries.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	endpoint := "v1/events"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp []Event
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	u := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, u, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.CSRFToken != "" {
		req.Header.Set("X-Csrf-Token", c.CSRFToken)
		req.AddCookie(&http.Cookie{Name: "studio_csrf", Value: c.CSRFToken})
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	return c.HTTPClient
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}

func filenameFromDisposition(disposition string) string {
	for _, part := range strings.Split(disposition, ";") {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, "filename=") {
			return strings.Trim(strings.TrimPrefix(part, "filename="), `"`)
		}
	}
	return ""
}
