package session

import (
	"math"
	"time"
)

// NextPollDelay returns the readiness delay after attempt N (1-based).
// With the default multiplier of 1.0 this is a fixed interval.
func NextPollDelay(cfg ReadinessConfig, attempt int) time.Duration {
	if cfg.Interval <= 0 {
		return 0
	}
	if attempt <= 1 {
		return cfg.Interval
	}
	if cfg.Multiplier < 1.0 {
		cfg.Multiplier = 1.0
	}
	delay := float64(cfg.Interval) * math.Pow(cfg.Multiplier, float64(attempt-1))
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	return time.Duration(delay)
}
