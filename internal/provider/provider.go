// Package provider classifies API keys into their issuing LLM vendor.
package provider

import (
	"errors"
	"strings"
)

// Provider identifies one of the supported LLM API vendors.
type Provider int

const (
	// OpenRouter keys look like sk-or-v1-...
	OpenRouter Provider = iota
	// DeepSeek keys use the generic sk- prefix.
	DeepSeek
)

const (
	openRouterPrefix = "sk-or-"
	deepSeekPrefix   = "sk-"
)

// ErrUnrecognizedKey indicates the key matches neither provider's prefix.
var ErrUnrecognizedKey = errors.New("provider: unrecognized API key format")

// Classify maps a raw API key to its provider based on the key prefix.
// OpenRouter is checked first because the DeepSeek prefix is a proper
// prefix of the OpenRouter one.
func Classify(rawKey string) (Provider, error) {
	key := strings.TrimSpace(rawKey)
	switch {
	case strings.HasPrefix(key, openRouterPrefix):
		return OpenRouter, nil
	case strings.HasPrefix(key, deepSeekPrefix):
		return DeepSeek, nil
	default:
		return 0, ErrUnrecognizedKey
	}
}

// String returns the canonical lowercase provider name used in config and storage.
func (p Provider) String() string {
	switch p {
	case OpenRouter:
		return "openrouter"
	case DeepSeek:
		return "deepseek"
	default:
		return "unknown"
	}
}

// Parse converts a stored provider name back into a Provider.
func Parse(name string) (Provider, bool) {
	switch name {
	case "openrouter":
		return OpenRouter, true
	case "deepseek":
		return DeepSeek, true
	default:
		return 0, false
	}
}

// BaseURL returns the default API base URL for the provider.
func (p Provider) BaseURL() string {
	switch p {
	case OpenRouter:
		return "https://openrouter.ai/api/v1"
	case DeepSeek:
		return "https://api.deepseek.com"
	default:
		return ""
	}
}
