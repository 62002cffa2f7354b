package reconciler

import "testing"

func approxEqual(t *testing.T, want, got, tolerance float64) {
	t.Helper()
	diff := want - got
	if diff < 0 {
		diff = -diff
	}
	if diff > tolerance {
		t.Fatalf("want %v, got %v (tolerance %v)", want, got, tolerance)
	}
}

func TestCalculateOptimalIntervalThreeRegions(t *testing.T) {
	tr := newTrendAnalyzer(0.3, 50)
	const capacity = 100.0
	const minMs, maxMs, baseMs = 10.0, 1000.0, 100.0

	// Below 20% utilization: flat at maxMs.
	tr.observe(10, 10)
	approxEqual(t, maxMs, tr.calculateOptimalInterval(capacity, minMs, maxMs, baseMs), 0.001)

	// Within the flat 20-70% band: flat at baseMs, regardless of where in
	// the band (spec.md's middle region has no ramp at all).
	tr2 := newTrendAnalyzer(1, 50)
	tr2.observe(45, 0)
	approxEqual(t, baseMs, tr2.calculateOptimalInterval(capacity, minMs, maxMs, baseMs), 0.001)
	tr3 := newTrendAnalyzer(1, 50)
	tr3.observe(70, 0)
	approxEqual(t, baseMs, tr3.calculateOptimalInterval(capacity, minMs, maxMs, baseMs), 0.001)

	// Above 70%: linear ramp from baseMs down to minMs over the 0.30 span.
	tr4 := newTrendAnalyzer(1, 50)
	tr4.observe(85, 0) // utilization 0.85 -> halfway through the 0.70-1.00 ramp
	want := baseMs - (baseMs-minMs)*0.5
	approxEqual(t, want, tr4.calculateOptimalInterval(capacity, minMs, maxMs, baseMs), 0.001)

	tr5 := newTrendAnalyzer(1, 50)
	tr5.observe(100, 0)
	approxEqual(t, minMs, tr5.calculateOptimalInterval(capacity, minMs, maxMs, baseMs), 0.001)
}

func TestCalculateHealthScoreFourPointCurve(t *testing.T) {
	tr := newTrendAnalyzer(1, 50)
	const capacity = 100.0

	tr.observe(10, 0) // U=0.10 < 0.30
	approxEqual(t, 1.0, tr.calculateHealthScore(capacity), 0.001)

	tr2 := newTrendAnalyzer(1, 50)
	tr2.observe(70, 0) // U=0.70
	approxEqual(t, 0.5, tr2.calculateHealthScore(capacity), 0.001)

	tr3 := newTrendAnalyzer(1, 50)
	tr3.observe(90, 0) // U=0.90
	approxEqual(t, 0.2, tr3.calculateHealthScore(capacity), 0.001)

	tr4 := newTrendAnalyzer(1, 50)
	tr4.observe(100, 0) // U=1.00
	approxEqual(t, 0.0, tr4.calculateHealthScore(capacity), 0.001)

	tr5 := newTrendAnalyzer(1, 50)
	tr5.observe(50, 0) // U=0.50, halfway between 0.30 (1.0) and 0.70 (0.5)
	approxEqual(t, 0.75, tr5.calculateHealthScore(capacity), 0.001)
}

func TestPredictNextQueueDepthUsesFirstAndLastFiveMeans(t *testing.T) {
	tr := newTrendAnalyzer(1, 50)
	// First five observations average 10, last five average 20; EMA with
	// alpha=1 tracks the most recent sample exactly.
	samples := []float64{10, 10, 10, 10, 10, 15, 16, 17, 18, 19, 20, 20, 20, 20, 20}
	for _, s := range samples {
		tr.observe(s, 0)
	}
	n := len(samples)
	firstFive := samples[:5]
	lastFive := samples[n-5:]
	var firstSum, lastSum float64
	for i := range firstFive {
		firstSum += firstFive[i]
		lastSum += lastFive[i]
	}
	want := samples[n-1] + (lastSum/5 - firstSum/5)
	approxEqual(t, want, tr.predictNextQueueDepth(), 0.001)
}

func TestPredictNextQueueDepthNeverNegative(t *testing.T) {
	tr := newTrendAnalyzer(1, 50)
	tr.observe(5, 0)
	tr.observe(0, 0)
	got := tr.predictNextQueueDepth()
	if got < 0 {
		t.Fatalf("predicted depth must never be negative, got %v", got)
	}
}
