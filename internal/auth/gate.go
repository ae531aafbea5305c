// Package auth implements the local secret gate: a short numeric PIN that
// guards the stored provider API key.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"tokenchat/internal/llm"
	"tokenchat/internal/store"
)

// ErrKeyRejected indicates the provider explicitly refused the key during
// setup. Distinguishable from an ambiguous probe failure, which proceeds.
var ErrKeyRejected = errors.New("auth: API key rejected by provider")

const secretDigits = 4

// IssueSecret generates a cryptographically random 4-digit PIN.
// Leading zeros are preserved.
func IssueSecret() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", fmt.Errorf("auth: generating secret: %w", err)
	}
	return fmt.Sprintf("%0*d", secretDigits, n.Int64()), nil
}

// DeriveVerifier computes the one-way verifier stored in place of the PIN.
func DeriveVerifier(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// Verify recomputes the verifier for a candidate PIN and compares.
func Verify(candidate, verifier string) bool {
	return DeriveVerifier(candidate) == verifier
}

// CredentialStore is the slice of the storage layer the gate needs.
type CredentialStore interface {
	GetCredential() (*store.Credential, error)
	SetCredential(store.Credential) error
}

// Gate runs the key-setup flow and later PIN verification.
type Gate struct {
	store   CredentialStore
	baseURL string
}

// NewGate creates a gate over the given credential store.
func NewGate(s CredentialStore) *Gate {
	return &Gate{store: s}
}

// WithBaseURL overrides the probe endpoint. Used for gateways and tests.
func (g *Gate) WithBaseURL(u string) *Gate {
	g.baseURL = u
	return g
}

// Setup classifies the key, probes the provider's billing endpoint, and on
// anything but an explicit rejection issues a PIN and persists the
// credential, superseding any prior record. The plaintext PIN is returned
// exactly once and never stored.
func (g *Gate) Setup(ctx context.Context, rawKey string) (string, error) {
	p, outcome, err := llm.ProbeKey(ctx, rawKey, g.baseURL)
	if err != nil {
		return "", err
	}
	if outcome.State == llm.ProbeRejected {
		return "", ErrKeyRejected
	}

	secret, err := IssueSecret()
	if err != nil {
		return "", err
	}

	if err := g.store.SetCredential(store.Credential{
		APIKey:   rawKey,
		Provider: p.String(),
		PINHash:  DeriveVerifier(secret),
	}); err != nil {
		return "", fmt.Errorf("auth: persisting credential: %w", err)
	}

	return secret, nil
}

// VerifySecret checks a candidate PIN against the stored verifier.
// Returns false when no credential is stored.
func (g *Gate) VerifySecret(candidate string) (bool, error) {
	cred, err := g.store.GetCredential()
	if err != nil {
		return false, fmt.Errorf("auth: reading credential: %w", err)
	}
	if cred == nil {
		return false, nil
	}
	return Verify(candidate, cred.PINHash), nil
}
