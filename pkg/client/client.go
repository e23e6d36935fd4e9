// Package client is a small HTTP client for a running hub.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"llmhub/internal/models"
)

const DefaultHubURL = "http://localhost:3000"

// Error is returned for any non-2xx hub response.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("hub returned %d: %s", e.Status, e.Message)
}

// IsStatus reports whether err is a hub Error with the given status.
func IsStatus(err error, status int) bool {
	var e *Error
	return errors.As(err, &e) && e.Status == status
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

func New(hubURL string, opts ...Option) *Client {
	if hubURL == "" {
		hubURL = DefaultHubURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(hubURL, "/"),
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &Error{Status: resp.StatusCode, Message: e.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}

func roomPath(code string, parts ...string) string {
	p := "/rooms/" + url.PathEscape(code)
	for _, part := range parts {
		p += "/" + part
	}
	return p
}

func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *Client) Create(ctx context.Context, name, password string) (*models.CreateRoomResponse, error) {
	var out models.CreateRoomResponse
	err := c.do(ctx, http.MethodPost, "/rooms", models.CreateRoomRequest{Name: name, Password: password}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) List(ctx context.Context) ([]models.RoomSummary, error) {
	var out struct {
		Rooms []models.RoomSummary `json:"rooms"`
	}
	if err := c.do(ctx, http.MethodGet, "/rooms", nil, &out); err != nil {
		return nil, err
	}
	return out.Rooms, nil
}

func (c *Client) Join(ctx context.Context, code string, req models.JoinRoomRequest) (*models.JoinRoomResponse, error) {
	var out models.JoinRoomResponse
	if err := c.do(ctx, http.MethodPost, roomPath(code, "join"), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Leave(ctx context.Context, code, participantID string) error {
	return c.do(ctx, http.MethodDelete, roomPath(code, "leave", url.PathEscape(participantID)), nil, nil)
}

func (c *Client) Participants(ctx context.Context, code string) ([]models.Participant, error) {
	var out struct {
		Participants []models.Participant `json:"participants"`
	}
	if err := c.do(ctx, http.MethodGet, roomPath(code, "participants"), nil, &out); err != nil {
		return nil, err
	}
	return out.Participants, nil
}

// HealthCheck sends a participant heartbeat.
func (c *Client) HealthCheck(ctx context.Context, code, participantID string) error {
	return c.do(ctx, http.MethodPost, roomPath(code, "health"), models.HealthCheckRequest{ID: participantID}, nil)
}

func (c *Client) Models(ctx context.Context, code string) (*models.ModelList, error) {
	var out models.ModelList
	if err := c.do(ctx, http.MethodGet, roomPath(code, "v1", "models"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
