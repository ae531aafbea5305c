package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"tokenchat/internal/provider"
)

// adapter captures the per-provider differences: how to ask for the
// account balance, how to read it back, and how to shape a chat request.
// Everything else (model listing, completion parsing) is shared.
type adapter interface {
	balancePath() string
	parseBalance(body []byte) (float64, error)
	buildChatRequest(modelID, text string) any
}

func adapterFor(p provider.Provider) adapter {
	switch p {
	case provider.DeepSeek:
		return deepSeekAdapter{}
	default:
		return openRouterAdapter{}
	}
}

// chatMessage is the OpenAI-compatible message shape both providers accept.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// openRouterAdapter speaks the OpenRouter key-limit style of billing:
// GET /auth/key returns a spend limit and usage-to-date.
type openRouterAdapter struct{}

func (openRouterAdapter) balancePath() string { return "/auth/key" }

func (openRouterAdapter) parseBalance(body []byte) (float64, error) {
	var raw struct {
		Data *struct {
			Limit *float64 `json:"limit"`
			Usage float64  `json:"usage"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return 0, fmt.Errorf("llm: parsing key status: %w", err)
	}
	if raw.Data == nil {
		return 0, errors.New("llm: key status missing data field")
	}
	// A null limit means an unlimited tier: valid key, no meaningful amount.
	if raw.Data.Limit == nil {
		return 0, nil
	}
	remaining := *raw.Data.Limit - raw.Data.Usage
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

func (openRouterAdapter) buildChatRequest(modelID, text string) any {
	// usage.include asks OpenRouter to report the actual charge per call.
	return struct {
		Model    string        `json:"model"`
		Messages []chatMessage `json:"messages"`
		Usage    struct {
			Include bool `json:"include"`
		} `json:"usage"`
	}{
		Model:    modelID,
		Messages: []chatMessage{{Role: "user", Content: text}},
		Usage: struct {
			Include bool `json:"include"`
		}{Include: true},
	}
}

// deepSeekAdapter speaks the DeepSeek balance style:
// GET /user/balance returns remaining credit per currency.
type deepSeekAdapter struct{}

func (deepSeekAdapter) balancePath() string { return "/user/balance" }

func (deepSeekAdapter) parseBalance(body []byte) (float64, error) {
	var raw struct {
		IsAvailable  bool `json:"is_available"`
		BalanceInfos []struct {
			Currency     string `json:"currency"`
			TotalBalance string `json:"total_balance"`
		} `json:"balance_infos"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return 0, fmt.Errorf("llm: parsing balance: %w", err)
	}
	if len(raw.BalanceInfos) == 0 {
		// Valid response with no balance breakdown: usable but unspecified.
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw.BalanceInfos[0].TotalBalance, 64)
	if err != nil {
		return 0, fmt.Errorf("llm: parsing balance amount %q: %w", raw.BalanceInfos[0].TotalBalance, err)
	}
	if v < 0 {
		v = 0
	}
	return v, nil
}

func (deepSeekAdapter) buildChatRequest(modelID, text string) any {
	return struct {
		Model    string        `json:"model"`
		Messages []chatMessage `json:"messages"`
	}{
		Model:    modelID,
		Messages: []chatMessage{{Role: "user", Content: text}},
	}
}
