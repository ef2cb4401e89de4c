package demandassdk

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
)

// Client is a minimal Demandas HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v0",
		Timeout:  10 * time.Second,
	}
}

// Demanda represents the API demanda model.
type Demanda struct {
	ID              int64   `json:"id"`
	Nome            string  `json:"nome"`
	Descricao       string  `json:"descricao,omitempty"`
	ResponsavelID   *int64  `json:"responsavel_id,omitempty"`
	ResponsavelNome string  `json:"responsavel_nome,omitempty"`
	DataPrevista    *string `json:"data_prevista,omitempty"`
	DataConclusao   *string `json:"data_conclusao,omitempty"`
	State           string  `json:"state"`
	PlannedWeek     *string `json:"planned_week,omitempty"`
	CompletedWeek   *string `json:"completed_week,omitempty"`
	OnTime          *bool   `json:"on_time,omitempty"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

// NewDemanda is the create payload.
type NewDemanda struct {
	Nome          string  `json:"nome"`
	Descricao     string  `json:"descricao,omitempty"`
	ResponsavelID *int64  `json:"responsavel_id,omitempty"`
	DataPrevista  *string `json:"data_prevista,omitempty"`
}

// DemandaPatch is a partial edit. ResponsavelID 0 and an empty DataPrevista
// clear the field.
type DemandaPatch struct {
	Nome          *string `json:"nome,omitempty"`
	Descricao     *string `json:"descricao,omitempty"`
	ResponsavelID *int64  `json:"responsavel_id,omitempty"`
	DataPrevista  *string `json:"data_prevista,omitempty"`
}

// ListOptions narrows ListDemandas. Zero values mean no constraint.
type ListOptions struct {
	Status        string
	ResponsavelID int64
	Unassigned    bool
	Query         string
}

// WeekBucket is the adherence summary of one week.
type WeekBucket struct {
	Week             string    `json:"week"`
	RangeStart       string    `json:"range_start"`
	RangeEnd         string    `json:"range_end"`
	PlannedCount     int       `json:"planned_count"`
	PendingCount     int       `json:"pending_count"`
	CompletedCount   int       `json:"completed_count"`
	PlannedDone      int       `json:"planned_done"`
	AdherencePercent int       `json:"adherence_percent"`
	PendingMembers   []Demanda `json:"pending_members,omitempty"`
	CompletedMembers []Demanda `json:"completed_members,omitempty"`
}

// Totals sums the weeks of a period.
type Totals struct {
	Planned          int `json:"planned"`
	Pending          int `json:"pending"`
	Completed        int `json:"completed"`
	PlannedDone      int `json:"planned_done"`
	AdherencePercent int `json:"adherence_percent"`
}

// Period is a month comparison, most recent week first.
type Period struct {
	Label     string       `json:"label"`
	Reference string       `json:"reference"`
	Weeks     []WeekBucket `json:"weeks"`
	Totals    Totals       `json:"totals"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateDemanda creates a demanda.
func (c *Client) CreateDemanda(ctx context.Context, in NewDemanda) (Demanda, error) {
	var resp Demanda
	err := c.do(ctx, http.MethodPost, "demandas", in, &resp)
	return resp, err
}

// ListDemandas lists demandas matching opts.
func (c *Client) ListDemandas(ctx context.Context, opts ListOptions) ([]Demanda, error) {
	q := url.Values{}
	if opts.Status != "" {
		q.Set("status", opts.Status)
	}
	if opts.ResponsavelID > 0 {
		q.Set("responsavel_id", strconv.FormatInt(opts.ResponsavelID, 10))
	}
	if opts.Unassigned {
		q.Set("unassigned", "true")
	}
	if opts.Query != "" {
		q.Set("q", opts.Query)
	}
	endpoint := "demandas"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp struct {
		Items []Demanda `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

func (c *Client) GetDemanda(ctx context.Context, id int64) (Demanda, error) {
	var resp Demanda
	err := c.do(ctx, http.MethodGet, demandaPath(id, ""), nil, &resp)
	return resp, err
}

func (c *Client) UpdateDemanda(ctx context.Context, id int64, patch DemandaPatch) (Demanda, error) {
	var resp Demanda
	err := c.do(ctx, http.MethodPatch, demandaPath(id, ""), patch, &resp)
	return resp, err
}

// ConcludeDemanda marks a pending demanda as completed now.
func (c *Client) ConcludeDemanda(ctx context.Context, id int64) (Demanda, error) {
	var resp Demanda
	err := c.do(ctx, http.MethodPost, demandaPath(id, "conclude"), nil, &resp)
	return resp, err
}

// ReopenDemanda returns a completed demanda to pending.
func (c *Client) ReopenDemanda(ctx context.Context, id int64) (Demanda, error) {
	var resp Demanda
	err := c.do(ctx, http.MethodPost, demandaPath(id, "reopen"), nil, &resp)
	return resp, err
}

func (c *Client) DeleteDemanda(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, demandaPath(id, ""), nil, nil)
}

// WeekReport fetches the adherence of one week key, e.g. 2025-W06.
func (c *Client) WeekReport(ctx context.Context, week string) (WeekBucket, error) {
	var resp WeekBucket
	err := c.do(ctx, http.MethodGet, "reports/weeks/"+url.PathEscape(week), nil, &resp)
	return resp, err
}

// PeriodReport fetches the month comparison around ref (YYYY-MM-DD). Blank
// ref means the server's today.
func (c *Client) PeriodReport(ctx context.Context, ref string) (Period, error) {
	endpoint := "reports/period"
	if ref != "" {
		endpoint += "?ref=" + url.QueryEscape(ref)
	}
	var resp Period
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// EventsPage fetches one page of the audit log.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint := "events"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func demandaPath(id int64, action string) string {
	p := "demandas/" + strconv.FormatInt(id, 10)
	if action != "" {
		p += "/" + action
	}
	return p
}

func (c *Client) base() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if c.BasePath != "" {
		base += "/" + strings.Trim(c.BasePath, "/")
	}
	return base
}
