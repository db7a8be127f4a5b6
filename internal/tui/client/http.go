package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/biorelay/relay/internal/ws"
)

// HTTPClient reads the relay's diagnostics endpoints.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a client targeting the given base URL (e.g. "http://127.0.0.1:8765").
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

// StatusMsg carries the result of one status poll.
type StatusMsg struct {
	Report *ws.StatusReport
	Err    error
}

// GetStatus fetches /api/status.
func (c *HTTPClient) GetStatus() (*ws.StatusReport, error) {
	var r ws.StatusReport
	if err := c.get("/api/status", &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// PollStatus returns a command that fetches the status once.
func (c *HTTPClient) PollStatus() tea.Cmd {
	return func() tea.Msg {
		r, err := c.GetStatus()
		return StatusMsg{Report: r, Err: err}
	}
}

func (c *HTTPClient) get(path string, out interface{}) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GET %s: %d %s", path, resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
