// Package analytics keeps in-memory running statistics for the current
// session. Nothing here is persisted; the durable history aggregate lives
// in the store.
package analytics

import (
	"sort"
	"time"

	"github.com/samber/lo"
)

// Sample is one raw per-turn observation.
type Sample struct {
	At             time.Time `json:"at"`
	Model          string    `json:"model"`
	TextLength     int       `json:"text_length"`
	LatencySeconds float64   `json:"latency_seconds"`
	TokensUsed     int64     `json:"tokens_used"`
}

// ModelUsage is the per-model running tally.
type ModelUsage struct {
	Messages int   `json:"messages"`
	Tokens   int64 `json:"tokens"`
}

// Snapshot is the derived view over the aggregate. All rates are
// division-by-zero safe: empty input yields zeros, not errors.
type Snapshot struct {
	TotalMessages          int                   `json:"total_messages"`
	TotalTokens            int64                 `json:"total_tokens"`
	SessionDurationSeconds float64               `json:"session_duration_seconds"`
	MessagesPerMinute      float64               `json:"messages_per_minute"`
	TokensPerMessage       float64               `json:"tokens_per_message"`
	PerModel               map[string]ModelUsage `json:"per_model"`
}

// LatencyStats summarizes response latencies over recorded samples.
type LatencyStats struct {
	Average float64 `json:"average"`
	Median  float64 `json:"median"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

// LengthStats summarizes message text lengths.
type LengthStats struct {
	AverageLength   float64 `json:"average_length"`
	TotalCharacters int64   `json:"total_characters"`
	MessageCount    int     `json:"message_count"`
}

// Aggregator accumulates per-turn usage for the process lifetime.
// Mutated only from the single sequential chat flow, so no locking.
type Aggregator struct {
	sessionStart time.Time
	perModel     map[string]*ModelUsage
	samples      []Sample

	now func() time.Time
}

// New creates an aggregator with the session clock started.
func New() *Aggregator {
	a := &Aggregator{now: time.Now}
	a.reset()
	return a
}

func (a *Aggregator) reset() {
	a.sessionStart = a.now()
	a.perModel = make(map[string]*ModelUsage)
	a.samples = nil
}

// Record tallies one genuine successful reply turn.
func (a *Aggregator) Record(model string, textLength int, latencySeconds float64, tokensUsed int64) {
	mu, ok := a.perModel[model]
	if !ok {
		mu = &ModelUsage{}
		a.perModel[model] = mu
	}
	mu.Messages++
	mu.Tokens += tokensUsed

	a.samples = append(a.samples, Sample{
		At:             a.now(),
		Model:          model,
		TextLength:     textLength,
		LatencySeconds: latencySeconds,
		TokensUsed:     tokensUsed,
	})
}

// Snapshot derives session totals and rates from the running tallies.
func (a *Aggregator) Snapshot() Snapshot {
	snap := Snapshot{PerModel: make(map[string]ModelUsage, len(a.perModel))}

	for model, mu := range a.perModel {
		snap.PerModel[model] = *mu
		snap.TotalMessages += mu.Messages
		snap.TotalTokens += mu.Tokens
	}

	snap.SessionDurationSeconds = a.now().Sub(a.sessionStart).Seconds()
	if snap.SessionDurationSeconds > 0 && snap.TotalMessages > 0 {
		snap.MessagesPerMinute = float64(snap.TotalMessages) / (snap.SessionDurationSeconds / 60)
	}
	if snap.TotalMessages > 0 {
		snap.TokensPerMessage = float64(snap.TotalTokens) / float64(snap.TotalMessages)
	}
	return snap
}

// EfficiencyByModel returns tokens per message for each model seen.
func (a *Aggregator) EfficiencyByModel() map[string]float64 {
	eff := make(map[string]float64, len(a.perModel))
	for model, mu := range a.perModel {
		if mu.Messages > 0 {
			eff[model] = float64(mu.Tokens) / float64(mu.Messages)
		}
	}
	return eff
}

// LatencyDistribution computes latency stats over all recorded samples.
// An empty aggregate yields the zero value rather than an error.
func (a *Aggregator) LatencyDistribution() LatencyStats {
	if len(a.samples) == 0 {
		return LatencyStats{}
	}

	latencies := lo.Map(a.samples, func(s Sample, _ int) float64 { return s.LatencySeconds })
	sort.Stable(sort.Float64Slice(latencies))

	n := len(latencies)
	var median float64
	if n%2 == 1 {
		median = latencies[n/2]
	} else {
		median = (latencies[n/2-1] + latencies[n/2]) / 2
	}

	return LatencyStats{
		Average: lo.Sum(latencies) / float64(n),
		Median:  median,
		Min:     latencies[0],
		Max:     latencies[n-1],
	}
}

// LengthDistribution summarizes recorded message text lengths.
func (a *Aggregator) LengthDistribution() LengthStats {
	if len(a.samples) == 0 {
		return LengthStats{}
	}
	total := lo.SumBy(a.samples, func(s Sample) int64 { return int64(s.TextLength) })
	return LengthStats{
		AverageLength:   float64(total) / float64(len(a.samples)),
		TotalCharacters: total,
		MessageCount:    len(a.samples),
	}
}

// Samples returns the raw per-turn samples in recording order.
func (a *Aggregator) Samples() []Sample {
	out := make([]Sample, len(a.samples))
	copy(out, a.samples)
	return out
}

// Clear resets all aggregates and restarts the session clock.
// Persisted history is unaffected.
func (a *Aggregator) Clear() {
	a.reset()
}
