// internal/api/client.go
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ucs-fleet/livemap/internal/ingest"
	"github.com/ucs-fleet/livemap/pkg/core"
)

// codeOK is the success code carried in every response envelope.
const codeOK = 200

// envelope is the common response wrapper of the screen API.
type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginData struct {
	Token string `json:"token"`
}

type weatherDTO struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	WindSpeed   float64 `json:"windSpeed"`
	RiskLevel   string  `json:"riskLevel"`
}

type taskSummaryDTO struct {
	Total     int `json:"total"`
	Executing int `json:"executing"`
	Completed int `json:"completed"`
	Abnormal  int `json:"abnormal"`
	Pending   int `json:"pending"`
}

type teamInfoDTO struct {
	TeamID      string `json:"teamId"`
	TeamName    string `json:"teamName"`
	Leader      string `json:"leader"`
	MemberCount int    `json:"memberCount"`
}

type eventDTO struct {
	EventType string    `json:"eventType"`
	UAVID     string    `json:"uavId"`
	Level     string    `json:"level"`
	Time      time.Time `json:"time"`
	Message   string    `json:"message"`
}

// Client talks to the ground-control screen API.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

// New creates a new API client.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Login authenticates and stores the bearer token used by subsequent
// requests. Safe to call again to refresh an expired token.
func (c *Client) Login(ctx context.Context, username, password string) error {
	body, err := json.Marshal(loginRequest{Username: username, Password: password})
	if err != nil {
		return fmt.Errorf("encoding login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/v1/auth/login", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()

	env, err := decodeEnvelope(resp)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	var data loginData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return fmt.Errorf("decoding login data: %w", err)
	}
	if data.Token == "" {
		return fmt.Errorf("login returned empty token")
	}

	c.mu.Lock()
	c.token = data.Token
	c.mu.Unlock()
	return nil
}

// Token returns the current bearer token, empty before login.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// UAVList fetches the authoritative drone roster snapshot.
func (c *Client) UAVList(ctx context.Context) ([]ingest.DroneStatus, error) {
	return getData[[]ingest.DroneStatus](ctx, c, "/api/v1/screen/uav/list")
}

// TaskSummary fetches the fleet task counters.
func (c *Client) TaskSummary(ctx context.Context) (core.TaskSummary, error) {
	dto, err := getData[taskSummaryDTO](ctx, c, "/api/v1/screen/task/summary")
	if err != nil {
		return core.TaskSummary{}, err
	}
	return core.TaskSummary{
		Total:     dto.Total,
		Executing: dto.Executing,
		Completed: dto.Completed,
		Abnormal:  dto.Abnormal,
		Pending:   dto.Pending,
	}, nil
}

// TeamStatus fetches the operator team roster.
func (c *Client) TeamStatus(ctx context.Context) ([]core.TeamInfo, error) {
	dtos, err := getData[[]teamInfoDTO](ctx, c, "/api/v1/screen/team/status")
	if err != nil {
		return nil, err
	}
	teams := make([]core.TeamInfo, 0, len(dtos))
	for _, d := range dtos {
		teams = append(teams, core.TeamInfo{
			TeamID:      d.TeamID,
			TeamName:    d.TeamName,
			Leader:      d.Leader,
			MemberCount: d.MemberCount,
		})
	}
	return teams, nil
}

// Weather fetches the current flight-weather report.
func (c *Client) Weather(ctx context.Context) (core.Weather, error) {
	dto, err := getData[weatherDTO](ctx, c, "/api/v1/screen/weather")
	if err != nil {
		return core.Weather{}, err
	}
	return core.Weather{
		Temperature: dto.Temperature,
		Humidity:    dto.Humidity,
		WindSpeed:   dto.WindSpeed,
		RiskLevel:   dto.RiskLevel,
	}, nil
}

// Events fetches the most recent platform events, newest first.
func (c *Client) Events(ctx context.Context, limit int) ([]core.Event, error) {
	path := "/api/v1/screen/events"
	if limit > 0 {
		path = fmt.Sprintf("%s?limit=%d", path, limit)
	}
	dtos, err := getData[[]eventDTO](ctx, c, path)
	if err != nil {
		return nil, err
	}
	events := make([]core.Event, 0, len(dtos))
	for _, d := range dtos {
		events = append(events, core.Event{
			EventType: d.EventType,
			UAVID:     d.UAVID,
			Level:     d.Level,
			Time:      d.Time,
			Message:   d.Message,
		})
	}
	return events, nil
}

// getData performs an authenticated GET and decodes the envelope data.
func getData[T any](ctx context.Context, c *Client, path string) (T, error) {
	var zero T

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return zero, fmt.Errorf("creating request: %w", err)
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return zero, fmt.Errorf("request %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	env, err := decodeEnvelope(resp)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", path, err)
	}

	var data T
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return zero, fmt.Errorf("decoding %s data: %w", path, err)
	}
	return data, nil
}

func decodeEnvelope(resp *http.Response) (*envelope, error) {
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decoding envelope: %w", err)
	}
	if env.Code != codeOK {
		return nil, fmt.Errorf("api error %d: %s", env.Code, env.Msg)
	}
	return &env, nil
}
