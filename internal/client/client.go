// Package client implements the front-end half of the background-job
// status synchronization: a JSON API client, a restartable organize-job
// poller, a binary extraction watcher and the chat session orchestration
// that ties them together.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hn770123/memory-assistant-v3/internal/domain"
	"github.com/hn770123/memory-assistant-v3/internal/domain/model"
)

// Client is a thin JSON client over the server endpoints. A cookie jar
// keeps the chat session sticky across calls.
type Client struct {
	baseURL string
	http    *http.Client
	log     *zerolog.Logger
}

func NewClient(baseURL string, logger *zerolog.Logger) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	l := logger.With().Str("component", "api-client").Logger()
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Jar:     jar,
			Timeout: 30 * time.Second,
		},
		log: &l,
	}, nil
}

// StartOrganize triggers the organize job. A 409 maps to
// domain.ErrJobAlreadyRunning so callers can tell double-start apart
// from transport failure.
func (c *Client) StartOrganize(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodPost, "/organize", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusConflict {
		return domain.ErrJobAlreadyRunning
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("start organize: %s", errBody(resp))
	}
	return nil
}

// OrganizeStatus polls the organize job. Logs are cumulative and
// append-only across successive calls of the same run.
func (c *Client) OrganizeStatus(ctx context.Context) (model.OrganizeStatus, error) {
	var status model.OrganizeStatus
	err := c.getJSON(ctx, "/organize/status", &status)
	return status, err
}

// SendChat submits one chat turn.
func (c *Client) SendChat(ctx context.Context, message string) (*model.ChatTurn, error) {
	resp, err := c.do(ctx, http.MethodPost, "/chat", map[string]string{"message": message})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("chat: %s", errBody(resp))
	}
	var turn model.ChatTurn
	if err := json.NewDecoder(resp.Body).Decode(&turn); err != nil {
		return nil, fmt.Errorf("decoding chat response: %w", err)
	}
	turn.UserText = message
	return &turn, nil
}

// History fetches the server-side conversation for this client's session,
// letting a fresh terminal restore where it left off.
func (c *Client) History(ctx context.Context) ([]model.ChatMessage, error) {
	var body struct {
		History []model.ChatMessage `json:"history"`
	}
	if err := c.getJSON(ctx, "/history", &body); err != nil {
		return nil, err
	}
	return body.History, nil
}

// ProcessingStatus polls the post-chat extraction job.
func (c *Client) ProcessingStatus(ctx context.Context) (model.ExtractionStatus, error) {
	var status model.ExtractionStatus
	err := c.getJSON(ctx, "/api/system/processing_status", &status)
	return status, err
}

func (c *Client) ClearHistory(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodPost, "/clear_history", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("clear history: %s", errBody(resp))
	}
	return nil
}

func (c *Client) TestMode(ctx context.Context) (bool, error) {
	var body struct {
		TestMode bool `json:"test_mode"`
	}
	if err := c.getJSON(ctx, "/test_mode", &body); err != nil {
		return false, err
	}
	return body.TestMode, nil
}

func (c *Client) SetTestMode(ctx context.Context, enabled bool) error {
	resp, err := c.do(ctx, http.MethodPost, "/test_mode", map[string]bool{"enabled": enabled})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("set test mode: %s", errBody(resp))
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		buf = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, buf)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

// getJSON fetches and decodes. Missing fields in the payload simply
// leave zero values behind; only transport and syntax errors fail.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("GET %s: %s", path, errBody(resp))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

// errBody pulls the {"error": ...} message out of a failed response,
// falling back to the HTTP status line.
func errBody(resp *http.Response) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body); err == nil && body.Error != "" {
		return body.Error
	}
	return resp.Status
}
