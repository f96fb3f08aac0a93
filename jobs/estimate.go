package jobs

import "time"

const (
	// MinEstimate is the shortest processing time ever shown.
	MinEstimate = 30 * time.Second
	// RecalcInterval is how often the estimate is revised from elapsed time.
	RecalcInterval = time.Minute

	charsPerUnit   = 10000
	secondsPerUnit = 30
	// after the warm-up the run is assumed to be a bit over half done
	elapsedFactor = 1.8
)

// InitialEstimate guesses the processing time from the corpus size: about 30
// seconds per 10,000 characters, never below MinEstimate.
func InitialEstimate(chars int) time.Duration {
	est := time.Duration(float64(chars)/charsPerUnit*secondsPerUnit) * time.Second
	if est < MinEstimate {
		return MinEstimate
	}
	return est
}

// Estimator tracks a running estimate. It is not safe for concurrent use.
type Estimator struct {
	estimate   time.Duration
	lastRecalc time.Duration
}

// NewEstimator starts from InitialEstimate(chars).
func NewEstimator(chars int) *Estimator {
	return &Estimator{estimate: InitialEstimate(chars)}
}

// Update revises the estimate for the elapsed time and returns the estimated
// total and remaining durations. Once past MinEstimate, the total is raised to
// elapsed*1.8 at most once per RecalcInterval. It never shrinks.
func (e *Estimator) Update(elapsed time.Duration) (total, remaining time.Duration) {
	if elapsed > MinEstimate && elapsed-e.lastRecalc >= RecalcInterval {
		if projected := time.Duration(float64(elapsed) * elapsedFactor); projected > e.estimate {
			e.estimate = projected
		}
		e.lastRecalc = elapsed
	}

	remaining = e.estimate - elapsed
	if remaining < 0 {
		remaining = 0
	}
	return e.estimate, remaining
}

// Percent maps elapsed time onto the 50-90% band of a progress bar.
func Percent(elapsed, total time.Duration) int {
	if total <= 0 {
		return 70
	}
	p := 50 + int(float64(elapsed)/float64(total)*40)
	if p > 90 {
		return 90
	}
	return p
}
