// Package llm provides a normalized client for the supported chat providers.
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

	"tokenchat/internal/provider"
)

const (
	requestTimeout = 10 * time.Second
	maxBodySize    = 1 << 20 // 1 MB
)

var (
	// ErrModelListUnavailable indicates the model listing endpoint failed.
	ErrModelListUnavailable = errors.New("llm: model list unavailable")
	// ErrInvalidResponse indicates the completion response lacked the
	// expected content path. Fatal for the turn, never retried.
	ErrInvalidResponse = errors.New("invalid API response format")
)

// Client executes model-listing, completion, and balance calls against one
// provider, normalizing its response shapes into a single output contract.
type Client struct {
	apiKey  string
	baseURL string
	ad      adapter
	http    *http.Client
}

// NewClient creates a client for the given provider and key.
func NewClient(p provider.Provider, apiKey string) *Client {
	return &Client{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: p.BaseURL(),
		ad:      adapterFor(p),
		http:    &http.Client{Timeout: requestTimeout},
	}
}

// WithBaseURL overrides the provider's default endpoint. Used for
// self-hosted gateways and tests.
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = strings.TrimRight(u, "/")
	return c
}

// ListModels fetches the provider's model catalog.
// Tolerates both {"data":[...]} and bare-array response shapes, and both
// context_length and max_model_len field names (0 when absent).
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	body, status, err := c.do(ctx, http.MethodGet, "/models", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelListUnavailable, err)
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrModelListUnavailable, status)
	}

	models, err := decodeModels(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelListUnavailable, err)
	}
	return models, nil
}

// rawModel covers the union of model fields across providers and API versions.
type rawModel struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Pricing *struct {
		Prompt     string `json:"prompt"`
		Completion string `json:"completion"`
	} `json:"pricing"`
	ContextLength int64 `json:"context_length"`
	MaxModelLen   int64 `json:"max_model_len"`
}

func decodeModels(body []byte) ([]Model, error) {
	var raws []rawModel

	// Wrapped shape first, then bare array.
	var wrapped struct {
		Data []rawModel `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Data != nil {
		raws = wrapped.Data
	} else if err := json.Unmarshal(body, &raws); err != nil {
		return nil, fmt.Errorf("parsing model list: %w", err)
	}

	models := make([]Model, 0, len(raws))
	for _, r := range raws {
		if r.ID == "" {
			continue
		}
		m := Model{
			ID:            r.ID,
			DisplayName:   r.Name,
			ContextLength: r.ContextLength,
		}
		if m.DisplayName == "" {
			m.DisplayName = r.ID
		}
		if m.ContextLength == 0 {
			m.ContextLength = r.MaxModelLen
		}
		if r.Pricing != nil {
			m.PromptPrice = r.Pricing.Prompt
			m.CompletionPrice = r.Pricing.Completion
		}
		models = append(models, m)
	}
	return models, nil
}

// SendTurn executes one chat completion and normalizes the result.
func (c *Client) SendTurn(ctx context.Context, text, modelID string) (*Reply, error) {
	payload, err := json.Marshal(c.ad.buildChatRequest(modelID, text))
	if err != nil {
		return nil, fmt.Errorf("llm: encoding request: %w", err)
	}

	body, status, err := c.do(ctx, http.MethodPost, "/chat/completions", payload)
	if err != nil {
		return nil, fmt.Errorf("llm: request failed: %w", err)
	}
	if status < 200 || status >= 300 {
		return nil, errors.New(errorMessage(body, status))
	}

	var raw struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int64    `json:"prompt_tokens"`
			CompletionTokens int64    `json:"completion_tokens"`
			TotalTokens      int64    `json:"total_tokens"`
			Cost             *float64 `json:"cost"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, ErrInvalidResponse
	}
	if len(raw.Choices) == 0 || raw.Choices[0].Message.Content == "" {
		return nil, ErrInvalidResponse
	}

	return &Reply{
		Content:          raw.Choices[0].Message.Content,
		PromptTokens:     raw.Usage.PromptTokens,
		CompletionTokens: raw.Usage.CompletionTokens,
		TotalTokens:      raw.Usage.TotalTokens,
		Cost:             raw.Usage.Cost,
	}, nil
}

// FetchBalance returns the remaining account credit for display purposes.
// Returns -1 on any failure; this path never gates anything, the probe does.
func (c *Client) FetchBalance(ctx context.Context) float64 {
	body, status, err := c.do(ctx, http.MethodGet, c.ad.balancePath(), nil)
	if err != nil || status != http.StatusOK {
		return -1
	}
	v, err := c.ad.parseBalance(body)
	if err != nil {
		return -1
	}
	return v
}

// errorMessage extracts a provider error message, falling back to the raw
// body text when the payload is not structured.
func errorMessage(body []byte, status int) string {
	var raw struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &raw); err == nil && raw.Error.Message != "" {
		return raw.Error.Message
	}
	if msg := strings.TrimSpace(string(body)); msg != "" {
		return msg
	}
	return fmt.Sprintf("request failed with status %d", status)
}

// do performs an authenticated request and returns the body and status.
func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, int, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading response: %w", err)
	}
	return body, resp.StatusCode, nil
}
