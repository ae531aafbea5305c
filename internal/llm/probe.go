package llm

import (
	"context"
	"net/http"

	"tokenchat/internal/provider"
)

// ProbeState is the tri-state result of a key validity probe.
type ProbeState int

const (
	// ProbeOK means the key is confirmed usable.
	ProbeOK ProbeState = iota
	// ProbeRejected means the provider explicitly refused the key (401/403).
	ProbeRejected
	// ProbeUnknown means validity could not be established: network
	// failure, malformed payload, or any other status. Not a rejection.
	ProbeUnknown
)

// BalanceOutcome carries the probe state and, for ProbeOK, the remaining
// credit (0 for valid-but-unlimited tiers).
type BalanceOutcome struct {
	State  ProbeState
	Amount float64
}

// ProbeBalance checks whether a key is usable by querying the provider's
// billing endpoint. Only an explicit auth failure rejects the key; every
// ambiguous outcome maps to ProbeUnknown so a transient failure never
// blocks key setup.
func (c *Client) ProbeBalance(ctx context.Context) BalanceOutcome {
	body, status, err := c.do(ctx, http.MethodGet, c.ad.balancePath(), nil)
	if err != nil {
		return BalanceOutcome{State: ProbeUnknown}
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return BalanceOutcome{State: ProbeRejected}
	case status != http.StatusOK:
		return BalanceOutcome{State: ProbeUnknown}
	}

	amount, err := c.ad.parseBalance(body)
	if err != nil {
		return BalanceOutcome{State: ProbeUnknown}
	}
	return BalanceOutcome{State: ProbeOK, Amount: amount}
}

// ProbeKey classifies and probes a raw key in one step, returning the
// provider alongside the outcome.
func ProbeKey(ctx context.Context, rawKey string, baseURL string) (provider.Provider, BalanceOutcome, error) {
	p, err := provider.Classify(rawKey)
	if err != nil {
		return 0, BalanceOutcome{}, err
	}
	c := NewClient(p, rawKey)
	if baseURL != "" {
		c = c.WithBaseURL(baseURL)
	}
	return p, c.ProbeBalance(ctx), nil
}
