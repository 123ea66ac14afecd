package llm

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

type timeoutGenerator struct {
	Generator
	timeout time.Duration
}

// WithTimeout bounds every Generate call on g by d.
func WithTimeout(g Generator, d time.Duration) Generator {
	return &timeoutGenerator{Generator: g, timeout: d}
}

func (t *timeoutGenerator) Generate(ctx context.Context, diff string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.Generator.Generate(ctx, diff)
}

type throttledGenerator struct {
	Generator
	limiter *rate.Limiter
}

// Throttle limits calls to g to rps per second with a burst of one.
// Callers block until a slot is free or ctx is done.
func Throttle(g Generator, rps float64) Generator {
	return &throttledGenerator{Generator: g, limiter: rate.NewLimiter(rate.Limit(rps), 1)}
}

func (t *throttledGenerator) Generate(ctx context.Context, diff string) (string, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("waiting for generator slot: %w", err)
	}
	return t.Generator.Generate(ctx, diff)
}
