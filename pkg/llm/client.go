// Package llm provides the client for the upstream generation service.
// Each Complete call issues exactly one network request; retry policy
// belongs to the caller.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/longform-ai/longform/pkg/config"
	"github.com/longform-ai/longform/pkg/models"
	"github.com/longform-ai/longform/pkg/zlog"
	"go.uber.org/zap"
)

const (
	messagesPath = "/v1/messages"
	apiVersion   = "2023-06-01"
)

// CallResult is the outcome of a single successful generation call.
type CallResult struct {
	Text      string
	Latency   time.Duration
	Truncated bool
}

// Client is the generation-service boundary.
type Client interface {
	Complete(ctx context.Context, prompt string, params models.GenerationParams) (CallResult, error)
}

// HTTPClient talks to an Anthropic-compatible messages endpoint over a
// bounded connection pool with a fixed per-request timeout.
type HTTPClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewHTTPClient builds a client from cfg. The underlying transport is
// shared across all calls so the connection bound holds globally.
func NewHTTPClient(cfg *config.Config) *HTTPClient {
	transport := &http.Transport{
		MaxConnsPerHost:     cfg.HTTP.MaxConns,
		MaxIdleConns:        cfg.HTTP.MaxConns,
		MaxIdleConnsPerHost: cfg.HTTP.MaxIdleConns,
		IdleConnTimeout:     90 * time.Second,
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http: &http.Client{
			Transport: transport,
			Timeout:   cfg.HTTP.Timeout,
		},
	}
}

type messageRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	Messages    []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messageResponse struct {
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete issues one generation request and returns the assembled text.
// Network failures surface as *TransportError, non-2xx responses as
// *ServiceError. A finish reason of "max_tokens" marks the result
// truncated without failing the call.
func (c *HTTPClient) Complete(ctx context.Context, prompt string, params models.GenerationParams) (CallResult, error) {
	body, err := json.Marshal(messageRequest{
		Model:       params.Model,
		MaxTokens:   params.MaxTokens,
		Temperature: params.Temperature,
		Messages:    []message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return CallResult{}, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+messagesPath, bytes.NewReader(body))
	if err != nil {
		return CallResult{}, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Anthropic-Version", apiVersion)

	start := time.Now()
	resp, err := c.http.Do(req)
	latency := time.Since(start)
	if err != nil {
		return CallResult{}, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return CallResult{}, c.serviceError(resp)
	}

	var mr messageResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return CallResult{}, &ServiceError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("decoding response: %v", err)}
	}

	var sb strings.Builder
	for _, block := range mr.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	text := sb.String()
	if text == "" {
		return CallResult{}, &ServiceError{StatusCode: resp.StatusCode, Message: "empty response content"}
	}

	truncated := mr.StopReason == "max_tokens"
	zlog.Debug("generation call complete",
		zap.Duration("latency", latency),
		zap.String("stop_reason", mr.StopReason),
		zap.Bool("truncated", truncated))

	return CallResult{Text: text, Latency: latency, Truncated: truncated}, nil
}

func (c *HTTPClient) serviceError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var er errorResponse
	msg := strings.TrimSpace(string(data))
	if err := json.Unmarshal(data, &er); err == nil && er.Error.Message != "" {
		msg = er.Error.Message
	}
	return &ServiceError{StatusCode: resp.StatusCode, Message: msg}
}

// IsRateLimited reports whether err is a service-side rate limit.
func IsRateLimited(err error) bool {
	var se *ServiceError
	return errors.As(err, &se) && se.StatusCode == http.StatusTooManyRequests
}
