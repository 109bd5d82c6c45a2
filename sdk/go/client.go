package pairwisesdk

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

// Client is a minimal Pairwise HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Participant is a group member as returned by the API.
type Participant struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	JoinOrder  int64  `json:"join_order"`
	RoundCount int    `json:"round_count"`
}

// Group represents the API group model (partial).
type Group struct {
	Token                  string        `json:"token"`
	SupervisorID           string        `json:"supervisor_id"`
	SupervisorParticipates bool          `json:"supervisor_participates"`
	Participants           []Participant `json:"participants"`
	RoundCounter           int           `json:"round_counter"`
	EndedAt                *string       `json:"ended_at,omitempty"`
}

// Round is one completed pairing round. Each pair is [leader, follower];
// id 0 stands for the supervisor.
type Round struct {
	RoundNumber      int        `json:"roundNumber"`
	Pairs            [][2]int64 `json:"pairs"`
	SittingOut       *int64     `json:"sittingOut"`
	SupervisorPaired bool       `json:"supervisorPaired"`
	Content          []string   `json:"content,omitempty"`
}

// State is the exportable record of a group.
type State struct {
	Token        string `json:"token"`
	Participants []struct {
		ID         int64         `json:"id"`
		JoinOrder  int64         `json:"joinOrder"`
		RoundCount int           `json:"roundCount"`
		LedCounts  map[int64]int `json:"ledCounts"`
	} `json:"participants"`
	Rotation     []int64 `json:"rotation"`
	RoundCounter int     `json:"roundCounter"`
	History      []Round `json:"history"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	GroupToken string         `json:"group_token"`
	EntityID   string         `json:"entity_id"`
	EntityKind string         `json:"entity_kind"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d code=%s body=%s", e.StatusCode, e.Code, e.Body)
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// DevLogin mints a development token for actorID and stores it on the client.
func (c *Client) DevLogin(ctx context.Context, actorID string) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "v0/auth/dev/login", map[string]any{"actor_id": actorID}, &resp); err != nil {
		return "", err
	}
	c.BearerToken = resp.Token
	return resp.Token, nil
}

// CreateGroup opens a group supervised by the authenticated actor. A nil
// participates keeps the server default.
func (c *Client) CreateGroup(ctx context.Context, participates *bool) (Group, error) {
	body := map[string]any{}
	if participates != nil {
		body["supervisor_participates"] = *participates
	}
	var resp Group
	err := c.do(ctx, http.MethodPost, "v0/groups", body, &resp)
	return resp, err
}

// GetGroup fetches a group by token.
func (c *Client) GetGroup(ctx context.Context, token string) (Group, error) {
	var resp Group
	err := c.do(ctx, http.MethodGet, c.groupPath(token, ""), nil, &resp)
	return resp, err
}

// Join adds a participant to a group and returns it with its assigned id.
func (c *Client) Join(ctx context.Context, token, name string) (Participant, error) {
	var resp Participant
	err := c.do(ctx, http.MethodPost, c.groupPath(token, "participants"), map[string]any{"name": name}, &resp)
	return resp, err
}

// Leave removes the participant id from the group.
func (c *Client) Leave(ctx context.Context, token string, id int64) error {
	endpoint := c.groupPath(token, fmt.Sprintf("participants/%d/leave", id))
	return c.do(ctx, http.MethodPost, endpoint, nil, nil)
}

// RunRound computes the next round. A non-empty category implies content.
func (c *Client) RunRound(ctx context.Context, token string, content bool, category string) (Round, error) {
	body := map[string]any{}
	if content {
		body["content"] = true
	}
	if category != "" {
		body["category"] = category
	}
	var resp Round
	err := c.do(ctx, http.MethodPost, c.groupPath(token, "rounds"), body, &resp)
	return resp, err
}

// LatestRound returns the most recent round of a group.
func (c *Client) LatestRound(ctx context.Context, token string) (Round, error) {
	var resp Round
	err := c.do(ctx, http.MethodGet, c.groupPath(token, "rounds/latest"), nil, &resp)
	return resp, err
}

// History returns every round of a group, oldest first.
func (c *Client) History(ctx context.Context, token string) ([]Round, error) {
	var resp struct {
		Items []Round `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, c.groupPath(token, "rounds"), nil, &resp)
	return resp.Items, err
}

// State exports the persisted state record of a group.
func (c *Client) State(ctx context.Context, token string) (State, error) {
	var resp State
	err := c.do(ctx, http.MethodGet, c.groupPath(token, "state"), nil, &resp)
	return resp, err
}

// NextContent dispenses the next prompt for scope.
func (c *Client) NextContent(ctx context.Context, scope, category string) (string, error) {
	q := url.Values{}
	if scope != "" {
		q.Set("scope", scope)
	}
	if category != "" {
		q.Set("category", category)
	}
	endpoint := "v0/content/next"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp struct {
		Text string `json:"text"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Text, err
}

// EventsPage returns a paginated event listing for a group.
func (c *Client) EventsPage(ctx context.Context, token string, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint := c.groupPath(token, "events")
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
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
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
				Code string `json:"code"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
		}
		return apiErr
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) groupPath(token, p string) string {
	endpoint := "v0/groups/" + url.PathEscape(token)
	if p == "" {
		return endpoint
	}
	return endpoint + "/" + strings.TrimLeft(p, "/")
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
