package llm

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"tokenchat/internal/provider"
)

func TestProbeBalanceTriState(t *testing.T) {
	tests := []struct {
		name       string
		p          provider.Provider
		handler    http.HandlerFunc
		wantState  ProbeState
		wantAmount float64
	}{
		{
			name: "valid key with remaining credit",
			p:    provider.OpenRouter,
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"data":{"limit":15,"usage":2.5}}`))
			},
			wantState:  ProbeOK,
			wantAmount: 12.5,
		},
		{
			name: "unlimited tier reports zero amount",
			p:    provider.OpenRouter,
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"data":{"limit":null,"usage":100}}`))
			},
			wantState:  ProbeOK,
			wantAmount: 0,
		},
		{
			name: "explicit 401 rejects",
			p:    provider.OpenRouter,
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			},
			wantState: ProbeRejected,
		},
		{
			name: "explicit 403 rejects",
			p:    provider.DeepSeek,
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusForbidden)
			},
			wantState: ProbeRejected,
		},
		{
			name: "server error is unknown, not rejected",
			p:    provider.DeepSeek,
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			wantState: ProbeUnknown,
		},
		{
			name: "malformed payload is unknown",
			p:    provider.OpenRouter,
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`<html>gateway</html>`))
			},
			wantState: ProbeUnknown,
		},
		{
			name: "deepseek balance parses",
			p:    provider.DeepSeek,
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"is_available":true,"balance_infos":[{"currency":"USD","total_balance":"8.00"}]}`))
			},
			wantState:  ProbeOK,
			wantAmount: 8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.p, tt.handler)
			got := c.ProbeBalance(context.Background())
			if got.State != tt.wantState {
				t.Fatalf("state = %v, want %v", got.State, tt.wantState)
			}
			if got.State == ProbeOK && got.Amount != tt.wantAmount {
				t.Errorf("amount = %v, want %v", got.Amount, tt.wantAmount)
			}
		})
	}
}

func TestProbeBalanceNetworkFailureIsUnknown(t *testing.T) {
	// Port reserved then closed: connection refused.
	c := NewClient(provider.OpenRouter, "sk-or-v1-test").WithBaseURL("http://127.0.0.1:1")

	got := c.ProbeBalance(context.Background())
	if got.State != ProbeUnknown {
		t.Fatalf("state = %v, want ProbeUnknown", got.State)
	}
}

func TestProbeKeyClassifies(t *testing.T) {
	if _, _, err := ProbeKey(context.Background(), "not-a-key", ""); !errors.Is(err, provider.ErrUnrecognizedKey) {
		t.Fatalf("error = %v, want ErrUnrecognizedKey", err)
	}
}
