package mcp

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

	"github.com/nikolayrodzhev/mapty/internal/models"
	"github.com/nikolayrodzhev/mapty/internal/store"
)

// HTTPClient implements DataSource by calling the mapty REST API.
// Used for stdio MCP mode where the binary runs locally but the workouts
// live on a remote server.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPClient creates an HTTPClient targeting the given base URL. apiKey
// is sent on mutating requests when non-empty.
func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// remoteWorkout is the envelope the REST API wraps each workout in.
type remoteWorkout struct {
	Workout models.Workout `json:"workout"`
}

func (c *HTTPClient) do(ctx context.Context, method, path string, payload any, want int) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("httpclient: encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("httpclient: create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httpclient: read body: %w", err)
	}

	switch {
	case resp.StatusCode == want:
		return data, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("httpclient: %s: %w", path, store.ErrNotFound)
	case resp.StatusCode == http.StatusUnprocessableEntity:
		var verr struct {
			Field  string `json:"field"`
			Reason string `json:"reason"`
		}
		_ = json.Unmarshal(data, &verr)
		return nil, &models.ValidationError{Field: verr.Field, Reason: verr.Reason}
	}
	return nil, fmt.Errorf("httpclient: %s returned %d: %s", path, resp.StatusCode, data)
}

func (c *HTTPClient) ListWorkouts(ctx context.Context) ([]models.Workout, error) {
	data, err := c.do(ctx, http.MethodGet, "/api/v1/workouts", nil, http.StatusOK)
	if err != nil {
		return nil, err
	}
	var views []remoteWorkout
	if err := json.Unmarshal(data, &views); err != nil {
		return nil, fmt.Errorf("httpclient: decode workouts: %w", err)
	}
	workouts := make([]models.Workout, len(views))
	for i, v := range views {
		workouts[i] = v.Workout
	}
	return workouts, nil
}

func (c *HTTPClient) GetWorkout(ctx context.Context, id string) (models.Workout, error) {
	data, err := c.do(ctx, http.MethodGet, "/api/v1/workouts/"+url.PathEscape(id), nil, http.StatusOK)
	if err != nil {
		return models.Workout{}, err
	}
	var v remoteWorkout
	if err := json.Unmarshal(data, &v); err != nil {
		return models.Workout{}, fmt.Errorf("httpclient: decode workout: %w", err)
	}
	return v.Workout, nil
}

func (c *HTTPClient) LogWorkout(ctx context.Context, in models.WorkoutInput) (models.Workout, error) {
	data, err := c.do(ctx, http.MethodPost, "/api/v1/workouts", in, http.StatusCreated)
	if err != nil {
		return models.Workout{}, err
	}
	var v remoteWorkout
	if err := json.Unmarshal(data, &v); err != nil {
		return models.Workout{}, fmt.Errorf("httpclient: decode workout: %w", err)
	}
	return v.Workout, nil
}
