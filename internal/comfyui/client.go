package comfyui

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ghaderi-m/comfyui-api/internal/config"
)

const (
	defaultTimeout      = 5 * time.Minute
	defaultPollInterval = 5 * time.Second
)

// Client ComfyUI API client. Owns one server session identified by a locally
// generated client id and drives one workflow through submission, polling and
// image retrieval.
type Client struct {
	serverAddress string
	clientID      string
	httpClient    *http.Client
	timeout       time.Duration
	pollInterval  time.Duration
	logger        *logrus.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the overall polling deadline used by Run.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithPollInterval sets the spacing between history polls.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) { c.pollInterval = d }
}

// WithLogger replaces the client's logger.
func WithLogger(l *logrus.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a ComfyUI client for the given server address (host:port
// or full URL).
func NewClient(serverAddress string, opts ...Option) *Client {
	c := &Client{
		serverAddress: strings.TrimSuffix(serverAddress, "/"),
		clientID:      uuid.NewString(),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		timeout:      defaultTimeout,
		pollInterval: defaultPollInterval,
		logger:       config.NewLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// buildURL builds complete URL, properly handling the server address
func (c *Client) buildURL(path string) string {
	endpoint := c.serverAddress
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "http://" + endpoint
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return endpoint + path
}

// QueuePrompt submits the workflow to the server and returns the prompt id.
// A non-2xx response is returned as a *SubmissionError carrying the status
// code and the server's error body; submissions are never retried.
func (c *Client) QueuePrompt(ctx context.Context, workflow json.Marshaler) (string, error) {
	requestBody := map[string]interface{}{
		"prompt":    workflow,
		"client_id": c.clientID,
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal workflow: %w", err)
	}

	reqURL := c.buildURL("/prompt")
	c.logger.Debugf("Submitting workflow to %s", reqURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return "", &SubmissionError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var result QueueResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	c.logger.Infof("Workflow submitted, prompt_id: %s", result.PromptID)
	return result.PromptID, nil
}

// GetHistory fetches the history record for a prompt id.
func (c *Client) GetHistory(ctx context.Context, promptID string) (History, error) {
	reqURL := c.buildURL("/history/" + promptID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var history History
	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		return nil, fmt.Errorf("failed to decode history response: %w", err)
	}
	return history, nil
}

// WaitForExecution polls the history endpoint at fixed interval spacing until
// the prompt has outputs or timeout elapses. Transient poll errors are logged
// and treated as pending.
func (c *Client) WaitForExecution(ctx context.Context, promptID string, timeout, interval time.Duration) (Outputs, error) {
	c.logger.Infof("Waiting for prompt %s to complete...", promptID)

	start := time.Now()
	for time.Since(start) < timeout {
		history, err := c.GetHistory(ctx, promptID)
		if err != nil {
			c.logger.Warnf("Polling error: %v", err)
		} else if entry, ok := history[promptID]; ok && len(entry.Outputs) > 0 {
			c.logger.Info("Prompt execution completed")
			return entry.Outputs, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}

	return nil, ErrExecutionTimeout
}

// GetImage downloads one produced image's raw bytes.
func (c *Client) GetImage(ctx context.Context, ref ImageRef) ([]byte, error) {
	query := url.Values{}
	query.Set("filename", ref.Filename)
	query.Set("subfolder", ref.Subfolder)
	query.Set("type", ref.Type)
	reqURL := c.buildURL("/view") + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// FetchImages downloads every image named in outputs, one request at a time,
// preserving per-node list order. Any single failure aborts the whole fetch.
func (c *Client) FetchImages(ctx context.Context, outputs Outputs) (map[string][][]byte, error) {
	images := make(map[string][][]byte, len(outputs))

	for nodeID, output := range outputs {
		nodeImages := make([][]byte, 0, len(output.Images))
		for _, ref := range output.Images {
			data, err := c.GetImage(ctx, ref)
			if err != nil {
				return nil, &RetrievalError{Image: ref, Err: err}
			}
			nodeImages = append(nodeImages, data)
		}
		images[nodeID] = nodeImages
	}

	return images, nil
}

// Run drives one workflow through submission, polling and retrieval. On a
// polling timeout a best-effort interrupt is sent before the error is
// returned.
func (c *Client) Run(ctx context.Context, workflow json.Marshaler) (map[string][][]byte, string, error) {
	promptID, err := c.QueuePrompt(ctx, workflow)
	if err != nil {
		return nil, "", err
	}

	outputs, err := c.WaitForExecution(ctx, promptID, c.timeout, c.pollInterval)
	if err != nil {
		if errors.Is(err, ErrExecutionTimeout) {
			if interruptErr := c.Interrupt(ctx); interruptErr != nil {
				c.logger.Warnf("Failed to interrupt prompt %s: %v", promptID, interruptErr)
			}
		}
		return nil, promptID, err
	}

	images, err := c.FetchImages(ctx, outputs)
	if err != nil {
		return nil, promptID, err
	}
	return images, promptID, nil
}

// Interrupt asks the server to stop the currently executing prompt.
func (c *Client) Interrupt(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.buildURL("/interrupt"), nil)
	if err != nil {
		return fmt.Errorf("failed to create interrupt request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to interrupt: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code when interrupting: %d", resp.StatusCode)
	}
	return nil
}

// HealthCheck performs health check against the server's stats endpoint.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.buildURL("/system_stats"), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status: %d", resp.StatusCode)
	}
	return nil
}
