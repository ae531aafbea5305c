package analytics

import (
	"math"
	"testing"
	"time"
)

func newTestAggregator(start time.Time) (*Aggregator, *time.Time) {
	clock := start
	a := New()
	a.now = func() time.Time { return clock }
	a.reset()
	return a, &clock
}

func TestRecordAndSnapshot(t *testing.T) {
	a, clock := newTestAggregator(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	a.Record("gpt-x", 10, 1.2, 50)
	a.Record("gpt-x", 20, 0.8, 30)
	*clock = clock.Add(2 * time.Minute)

	snap := a.Snapshot()
	if snap.TotalMessages != 2 {
		t.Errorf("TotalMessages = %d, want 2", snap.TotalMessages)
	}
	if snap.TotalTokens != 80 {
		t.Errorf("TotalTokens = %d, want 80", snap.TotalTokens)
	}
	mu := snap.PerModel["gpt-x"]
	if mu.Messages != 2 || mu.Tokens != 80 {
		t.Errorf("PerModel[gpt-x] = %+v, want {2 80}", mu)
	}
	if snap.TokensPerMessage != 40.0 {
		t.Errorf("TokensPerMessage = %v, want 40.0", snap.TokensPerMessage)
	}
	if snap.SessionDurationSeconds != 120 {
		t.Errorf("SessionDurationSeconds = %v, want 120", snap.SessionDurationSeconds)
	}
	if snap.MessagesPerMinute != 1.0 {
		t.Errorf("MessagesPerMinute = %v, want 1.0", snap.MessagesPerMinute)
	}
}

func TestSnapshotEmptyIsZeroSafe(t *testing.T) {
	a := New()
	snap := a.Snapshot()
	if snap.TotalMessages != 0 || snap.MessagesPerMinute != 0 || snap.TokensPerMessage != 0 {
		t.Fatalf("empty snapshot = %+v, want zero rates", snap)
	}
}

func TestEfficiencyByModel(t *testing.T) {
	a := New()
	a.Record("fast", 5, 0.1, 10)
	a.Record("fast", 5, 0.1, 20)
	a.Record("slow", 5, 2.0, 90)

	eff := a.EfficiencyByModel()
	if eff["fast"] != 15.0 {
		t.Errorf("efficiency[fast] = %v, want 15.0", eff["fast"])
	}
	if eff["slow"] != 90.0 {
		t.Errorf("efficiency[slow] = %v, want 90.0", eff["slow"])
	}
}

func TestLatencyDistribution(t *testing.T) {
	a := New()
	for _, l := range []float64{0.1, 0.3, 0.2} {
		a.Record("m", 10, l, 1)
	}

	d := a.LatencyDistribution()
	if math.Abs(d.Median-0.2) > 1e-9 {
		t.Errorf("Median = %v, want 0.2", d.Median)
	}
	if math.Abs(d.Average-0.2) > 1e-9 {
		t.Errorf("Average = %v, want 0.2", d.Average)
	}
	if d.Min != 0.1 || d.Max != 0.3 {
		t.Errorf("Min/Max = %v/%v, want 0.1/0.3", d.Min, d.Max)
	}
}

func TestLatencyDistributionEvenCount(t *testing.T) {
	a := New()
	for _, l := range []float64{0.4, 0.1, 0.3, 0.2} {
		a.Record("m", 10, l, 1)
	}
	d := a.LatencyDistribution()
	if math.Abs(d.Median-0.25) > 1e-9 {
		t.Errorf("even-count Median = %v, want 0.25", d.Median)
	}
}

func TestLatencyDistributionEmpty(t *testing.T) {
	a := New()
	if d := a.LatencyDistribution(); d != (LatencyStats{}) {
		t.Fatalf("empty distribution = %+v, want zero value", d)
	}
}

func TestLengthDistribution(t *testing.T) {
	a := New()
	a.Record("m", 10, 0.1, 1)
	a.Record("m", 30, 0.1, 1)

	d := a.LengthDistribution()
	if d.TotalCharacters != 40 || d.MessageCount != 2 || d.AverageLength != 20.0 {
		t.Fatalf("LengthDistribution = %+v, want {20 40 2}", d)
	}
}

func TestClear(t *testing.T) {
	a := New()
	a.Record("m", 10, 0.5, 25)
	a.Clear()

	if snap := a.Snapshot(); snap.TotalMessages != 0 {
		t.Errorf("TotalMessages after Clear = %d, want 0", snap.TotalMessages)
	}
	if eff := a.EfficiencyByModel(); len(eff) != 0 {
		t.Errorf("EfficiencyByModel after Clear = %v, want empty", eff)
	}
	if len(a.Samples()) != 0 {
		t.Error("samples remain after Clear")
	}
}
