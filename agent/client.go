package agent

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

	"github.com/jupark12/go-print-relay/models"
)

const (
	checkCommandsPath = "/api/check_commands"
	reportPath        = "/api/check_commands/report"

	// DefaultRequestTimeout bounds every call to the broker
	DefaultRequestTimeout = 10 * time.Second
)

// Command is a command as received from the broker. PDFData stays base64
// so a bad payload fails only its own command.
type Command struct {
	CommandID    string              `json:"command_id"`
	Type         string              `json:"type"`
	PDFData      string              `json:"pdf_data"`
	PrintOptions models.PrintOptions `json:"print_options"`
	Timestamp    string              `json:"timestamp"`
	Status       string              `json:"status"`
}

// Report is the outcome of one command
type Report struct {
	DeviceID  string `json:"device_id"`
	CommandID string `json:"command_id"`
	Success   bool   `json:"success"`
	Message   string `json:"message"`
}

// StatusError is returned when the broker answers with a non-200 status
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("broker returned status %d: %s", e.StatusCode, e.Body)
}

// Client talks to the broker's device API
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a broker client for baseURL
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}, nil
}

// Poll checks in as deviceID and returns the commands handed over
func (c *Client) Poll(ctx context.Context, deviceID string) ([]Command, error) {
	var resp struct {
		Commands []Command `json:"commands"`
	}
	if err := c.post(ctx, checkCommandsPath, map[string]string{"device_id": deviceID}, &resp); err != nil {
		return nil, err
	}
	return resp.Commands, nil
}

// Report sends the outcome of a command
func (c *Client) Report(ctx context.Context, r Report) error {
	return c.post(ctx, reportPath, r, nil)
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
