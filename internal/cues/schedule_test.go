package cues

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidatesAt(times ...float64) []Candidate {
	out := make([]Candidate, len(times))
	for i, t := range times {
		out[i] = Candidate{Raw: t, Refined: t}
	}
	return out
}

func TestScheduleMinimumSpacing(t *testing.T) {
	got := Schedule(candidatesAt(5, 10, 42, 80), DefaultSelectionConfig())
	assert.Equal(t, []float64{5, 42, 80}, Timestamps(got))
}

func TestScheduleFirstCue(t *testing.T) {
	cfg := DefaultSelectionConfig()
	cfg.FirstCue = 20

	got := Schedule(candidatesAt(5, 10, 42, 80), cfg)
	assert.Equal(t, []float64{42, 80}, Timestamps(got))
}

func TestScheduleRejectsLoudCandidate(t *testing.T) {
	cfg := DefaultSelectionConfig().WithThreshold(-10)
	candidates := []Candidate{{Raw: 15, Refined: 15, Level: KnownLevel(-6)}}

	points, decisions := ScheduleDecisions(candidates, cfg)
	assert.Empty(t, points)
	require.Len(t, decisions, 1)
	assert.Equal(t, RejectedLoud, decisions[0].Outcome)
}

func TestScheduleLoudSkipLeavesGapForLaterCandidate(t *testing.T) {
	cfg := DefaultSelectionConfig().WithThreshold(-20)
	candidates := []Candidate{
		{Raw: 0, Refined: 0, Level: KnownLevel(-40)},
		{Raw: 31, Refined: 31, Level: KnownLevel(-5)},
		{Raw: 33, Refined: 33, Level: KnownLevel(-25)},
		{Raw: 50, Refined: 50, Level: KnownLevel(-30)},
	}

	points, decisions := ScheduleDecisions(candidates, cfg)
	assert.Equal(t, []float64{0, 33}, Timestamps(points))

	outcomes := make([]Outcome, len(decisions))
	for i, d := range decisions {
		outcomes[i] = d.Outcome
	}
	assert.Equal(t, []Outcome{Accepted, RejectedLoud, Accepted, RejectedSpacing}, outcomes)
}

func TestScheduleUnknownLevelIgnoresThreshold(t *testing.T) {
	cfg := DefaultSelectionConfig().WithThreshold(-60)
	got := Schedule(candidatesAt(0, 45), cfg)
	assert.Equal(t, []float64{0, 45}, Timestamps(got))
}

func TestScheduleEmptyInput(t *testing.T) {
	got := Schedule(nil, DefaultSelectionConfig())
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestScheduleNothingAfterFirstCue(t *testing.T) {
	cfg := DefaultSelectionConfig()
	cfg.FirstCue = 1000
	assert.Empty(t, Schedule(candidatesAt(1, 100, 500), cfg))
}

func TestScheduleZeroSpacingOnlyFiltersEarlyAndLoud(t *testing.T) {
	cfg := SelectionConfig{FirstCue: 2, BetweenCues: 0}
	got := Schedule(candidatesAt(1, 2, 2.5, 3), cfg)
	assert.Equal(t, []float64{2, 2.5, 3}, Timestamps(got))
}

func TestScheduleSpacingLargerThanAsset(t *testing.T) {
	cfg := SelectionConfig{BetweenCues: 10_000}
	got := Schedule(candidatesAt(0, 60, 120, 600), cfg)
	assert.Equal(t, []float64{0}, Timestamps(got))
}

func TestScheduleSpacingClockIgnoresRejectedCandidates(t *testing.T) {
	// 25 and 50 are both too close to 0; 60 is measured against 0, not 50
	got := Schedule(candidatesAt(0, 25, 50, 60), SelectionConfig{BetweenCues: 55})
	assert.Equal(t, []float64{0, 60}, Timestamps(got))
}

func TestScheduleExactSpacingAccepted(t *testing.T) {
	got := Schedule(candidatesAt(12, 42), SelectionConfig{BetweenCues: 30})
	assert.Equal(t, []float64{12, 42}, Timestamps(got))
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "accepted", Accepted.String())
	assert.Equal(t, "too_early", RejectedEarly.String())
	assert.Equal(t, "too_close", RejectedSpacing.String())
	assert.Equal(t, "too_loud", RejectedLoud.String())
	assert.Equal(t, "unknown", Outcome(42).String())
}

func TestTally(t *testing.T) {
	cfg := SelectionConfig{FirstCue: 10, BetweenCues: 30}
	_, decisions := ScheduleDecisions(candidatesAt(1, 12, 20, 50), cfg)
	counts := Tally(decisions)
	assert.Equal(t, 1, counts[RejectedEarly])
	assert.Equal(t, 1, counts[RejectedSpacing])
	assert.Equal(t, 2, counts[Accepted])
}

func randomCandidates(rng *rand.Rand) []Candidate {
	n := rng.Intn(60)
	t := 0.0
	out := make([]Candidate, 0, n)
	for i := 0; i < n; i++ {
		t += rng.Float64() * 20
		c := Candidate{Raw: t, Refined: t}
		if rng.Intn(4) > 0 {
			c.Level = KnownLevel(-80 + rng.Float64()*80)
		}
		out = append(out, c)
	}
	return out
}

func randomConfig(rng *rand.Rand) SelectionConfig {
	cfg := SelectionConfig{
		FirstCue:    rng.Float64() * 100,
		BetweenCues: rng.Float64() * 60,
	}
	if rng.Intn(2) == 0 {
		cfg = cfg.WithThreshold(-60 + rng.Float64()*50)
	}
	return cfg
}

func TestScheduleProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for iter := 0; iter < 500; iter++ {
		candidates := randomCandidates(rng)
		cfg := randomConfig(rng)

		points, decisions := ScheduleDecisions(candidates, cfg)
		require.Len(t, decisions, len(candidates))

		// earliest start
		if len(points) > 0 {
			require.GreaterOrEqual(t, points[0].Timestamp, cfg.FirstCue)
		}

		// spacing and strict ordering
		for i := 1; i < len(points); i++ {
			gap := points[i].Timestamp - points[i-1].Timestamp
			require.Greater(t, gap, 0.0)
			require.GreaterOrEqual(t, gap, cfg.BetweenCues)
		}

		// loudness and subsequence
		j := 0
		for _, d := range decisions {
			if d.Outcome != Accepted {
				continue
			}
			if db, ok := d.Candidate.Level.DB(); ok && cfg.VolumeThreshold != nil {
				require.LessOrEqual(t, db, *cfg.VolumeThreshold)
			}
			require.Less(t, j, len(points))
			require.Equal(t, d.Candidate.Refined, points[j].Timestamp)
			j++
		}
		require.Equal(t, len(points), j)

		// unknown loudness is never the reason for a rejection
		for _, d := range decisions {
			if d.Outcome == RejectedLoud {
				require.True(t, d.Candidate.Level.Known())
			}
		}

		// determinism
		again, againDecisions := ScheduleDecisions(candidates, cfg)
		require.Equal(t, points, again)
		require.Equal(t, decisions, againDecisions)
	}
}

func TestScheduleGreedyIsMaximalWithoutLoudness(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for iter := 0; iter < 200; iter++ {
		candidates := randomCandidates(rng)
		if len(candidates) > 14 {
			candidates = candidates[:14]
		}
		cfg := SelectionConfig{BetweenCues: rng.Float64() * 40}

		got := len(Schedule(candidates, cfg))
		require.Equal(t, bruteForceMax(candidates, cfg.BetweenCues), got)
	}
}

// bruteForceMax finds the largest subset honouring the spacing constraint
func bruteForceMax(candidates []Candidate, between float64) int {
	best := 0
	for mask := 0; mask < 1<<len(candidates); mask++ {
		last := math.Inf(-1)
		count := 0
		ok := true
		for i, c := range candidates {
			if mask&(1<<i) == 0 {
				continue
			}
			if c.Refined-last < between {
				ok = false
				break
			}
			last = c.Refined
			count++
		}
		if ok && count > best {
			best = count
		}
	}
	return best
}
