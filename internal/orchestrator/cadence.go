package orchestrator

import (
	"math"
	"math/rand"
	"time"

	"github.com/aidjobs/harvester/internal/models"
)

// Cadence bounds in days.
const (
	minCadenceDays     = 0.5
	maxStaleCadence    = 14
	maxBackoffDays     = 7
	highActivityFloor  = 10
	staleStreakFloor   = 3
	// autoPauseThreshold is the fallback when scheduler.auto_pause_after
	// is unset.
	autoPauseThreshold = 5
)

// EffectiveCadenceDays computes the pre-jitter cadence for a source given
// the run's change count and the updated counters. High activity speeds a
// source up by a day; a stale streak slows it down; consecutive failures
// impose an exponential backoff floor capped at seven days.
func EffectiveCadenceDays(source *models.Source, changes int) float64 {
	base := source.BaseCadenceDays()

	c := base
	switch {
	case changes >= highActivityFloor:
		c = math.Max(minCadenceDays, base-1)
	case changes == 0 && source.ConsecutiveNoChange >= staleStreakFloor:
		c = math.Min(maxStaleCadence, base+1)
	}

	if f := source.ConsecutiveFailures; f > 0 {
		backoff := math.Min(maxBackoffDays, 6*math.Pow(2, float64(f))/24)
		c = math.Max(c, backoff)
	}

	return c
}

// NextRunAt applies the uniform jitter in [0.85, 1.15] and returns the
// next scheduled run.
func NextRunAt(now time.Time, cadenceDays float64, rng *rand.Rand) time.Time {
	jitter := 0.85 + rng.Float64()*0.30
	return now.Add(time.Duration(cadenceDays * jitter * 24 * float64(time.Hour)))
}
