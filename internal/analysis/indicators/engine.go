// Package indicators provides technical indicator calculations with parallel processing.
package indicators

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"signal-council/internal/models"
)

// Indicator defines the interface for single-value technical indicators.
// Positions where the value is undefined hold NaN.
type Indicator interface {
	Name() string
	Calculate(candles []models.Candle) ([]float64, error)
	Period() int
}

// MultiValueIndicator defines the interface for indicators that return multiple values.
type MultiValueIndicator interface {
	Name() string
	Calculate(candles []models.Candle) (map[string][]float64, error)
	Period() int
}

// Engine provides parallel indicator calculation using a bounded worker pool.
type Engine struct {
	workers     int
	indicators  map[string]Indicator
	multiIndics map[string]MultiValueIndicator
	mu          sync.RWMutex
}

// NewEngine creates a new indicator engine with the specified number of workers.
func NewEngine(workers int) *Engine {
	if workers <= 0 {
		workers = 4
	}
	return &Engine{
		workers:     workers,
		indicators:  make(map[string]Indicator),
		multiIndics: make(map[string]MultiValueIndicator),
	}
}

// RegisterIndicator registers a single-value indicator.
func (e *Engine) RegisterIndicator(ind Indicator) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.indicators[ind.Name()] = ind
}

// RegisterMultiIndicator registers a multi-value indicator.
func (e *Engine) RegisterMultiIndicator(ind MultiValueIndicator) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.multiIndics[ind.Name()] = ind
}

// CalculateAll calculates all registered indicators in parallel. The first
// failing indicator cancels the remaining work and its error is returned.
func (e *Engine) CalculateAll(ctx context.Context, candles []models.Candle) (map[string][]float64, map[string]map[string][]float64, error) {
	e.mu.RLock()
	indicators := make([]Indicator, 0, len(e.indicators))
	for _, ind := range e.indicators {
		indicators = append(indicators, ind)
	}
	multiIndics := make([]MultiValueIndicator, 0, len(e.multiIndics))
	for _, ind := range e.multiIndics {
		multiIndics = append(multiIndics, ind)
	}
	e.mu.RUnlock()

	singleResults := make(map[string][]float64, len(indicators))
	multiResults := make(map[string]map[string][]float64, len(multiIndics))
	var mu sync.Mutex

	p := pool.New().
		WithMaxGoroutines(e.workers).
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError()

	for _, ind := range indicators {
		ind := ind // per-iteration copy; module targets go 1.21 semantics
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			values, err := ind.Calculate(candles)
			if err != nil {
				return fmt.Errorf("%s: %w", ind.Name(), err)
			}
			mu.Lock()
			singleResults[ind.Name()] = values
			mu.Unlock()
			return nil
		})
	}

	for _, ind := range multiIndics {
		ind := ind // per-iteration copy; module targets go 1.21 semantics
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			values, err := ind.Calculate(candles)
			if err != nil {
				return fmt.Errorf("%s: %w", ind.Name(), err)
			}
			mu.Lock()
			multiResults[ind.Name()] = values
			mu.Unlock()
			return nil
		})
	}

	if err := p.Wait(); err != nil {
		return nil, nil, err
	}

	return singleResults, multiResults, nil
}

// Calculate calculates a specific indicator by name. Unregistered names
// return an error wrapping ErrUnknownIndicator.
func (e *Engine) Calculate(ctx context.Context, name string, candles []models.Candle) ([]float64, error) {
	e.mu.RLock()
	ind, ok := e.indicators[name]
	e.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownIndicator, name)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
		return ind.Calculate(candles)
	}
}

// CalculateMulti calculates a specific multi-value indicator by name.
func (e *Engine) CalculateMulti(ctx context.Context, name string, candles []models.Candle) (map[string][]float64, error) {
	e.mu.RLock()
	ind, ok := e.multiIndics[name]
	e.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: multi-value %s", ErrUnknownIndicator, name)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
		return ind.Calculate(candles)
	}
}

// ListIndicators returns the sorted names of all registered indicators,
// single and multi-value.
func (e *Engine) ListIndicators() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.indicators)+len(e.multiIndics))
	for name := range e.indicators {
		names = append(names, name)
	}
	for name := range e.multiIndics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Warmup returns the longest period among registered indicators.
func (e *Engine) Warmup() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	longest := 0
	for _, ind := range e.indicators {
		longest = max(longest, ind.Period())
	}
	for _, ind := range e.multiIndics {
		longest = max(longest, ind.Period())
	}
	return longest
}
