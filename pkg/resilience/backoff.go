package resilience

import (
	"math"
	"time"
)

// adaptiveMultipliers scale the base delay for the adaptive strategy.
var adaptiveMultipliers = map[Category]float64{
	CategoryRateLimit: 3.0,
	CategoryNetwork:   2.5,
	CategoryServer:    1.5,
}

const defaultAdaptiveMultiplier = 2.0

// maxExponent bounds 2^attempt so float math stays finite before capping.
const maxExponent = 32

// ExponentialBackoff returns min(base * 2^attempt, limit).
func ExponentialBackoff(attempt int, base, limit time.Duration) time.Duration {
	return scaled(base, 1.0, pow2(attempt), limit)
}

// LinearBackoff returns min(base * (attempt+1), limit).
func LinearBackoff(attempt int, base, limit time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	return scaled(base, 1.0, float64(attempt+1), limit)
}

// AdaptiveBackoff returns min(base * multiplier(category) * 2^attempt, limit).
func AdaptiveBackoff(attempt int, category Category, base, limit time.Duration) time.Duration {
	return scaled(base, AdaptiveMultiplier(category), pow2(attempt), limit)
}

// AdaptiveMultiplier returns the base multiplier used for category.
func AdaptiveMultiplier(category Category) float64 {
	if m, ok := adaptiveMultipliers[category]; ok {
		return m
	}
	return defaultAdaptiveMultiplier
}

// Delay returns the wait before retry number attempt (0-based) for a failure of category.
func (p RetryPolicy) Delay(attempt int, category Category) time.Duration {
	switch p.Strategy {
	case BackoffLinear:
		return LinearBackoff(attempt, p.BaseDelay, p.MaxDelay)
	case BackoffAdaptive:
		return AdaptiveBackoff(attempt, category, p.BaseDelay, p.MaxDelay)
	default:
		return ExponentialBackoff(attempt, p.BaseDelay, p.MaxDelay)
	}
}

func pow2(attempt int) float64 {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > maxExponent {
		attempt = maxExponent
	}
	return math.Pow(2, float64(attempt))
}

func scaled(base time.Duration, multiplier, factor float64, limit time.Duration) time.Duration {
	if base <= 0 || limit <= 0 {
		return 0
	}
	d := float64(base) * multiplier * factor
	if d >= float64(limit) {
		return limit
	}
	return time.Duration(d)
}
