package scorer

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
)

// Weighted pairs a Scorer with its relative weight in a CompositeScorer.
type Weighted struct {
	Scorer Scorer
	Weight float64
}

// CompositeScorer combines several scorers into a weighted sum.
//
// Weights are normalized to sum to 1 at construction. When a component
// fails (returns an error, panics, or returns NaN) the Neutral score is used
// for its term and the failure is logged; the composite itself never fails.
type CompositeScorer struct {
	components []Weighted
	logger     *slog.Logger
}

// CompositeOption configures a CompositeScorer.
type CompositeOption func(*CompositeScorer)

// WithLogger sets the logger used to report component failures.
func WithLogger(logger *slog.Logger) CompositeOption {
	return func(c *CompositeScorer) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCompositeScorer creates a CompositeScorer. Entries with a nil Scorer
// are skipped. It returns ErrNoScorers when no entry remains and
// ErrInvalidWeight for negative or NaN weights or when all weights are zero.
func NewCompositeScorer(entries []Weighted, opts ...CompositeOption) (*CompositeScorer, error) {
	c := &CompositeScorer{logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}

	total := 0.0
	for _, e := range entries {
		if e.Scorer == nil {
			continue
		}
		if e.Weight < 0 || math.IsNaN(e.Weight) || math.IsInf(e.Weight, 0) {
			return nil, fmt.Errorf("%w: %s=%v", ErrInvalidWeight, e.Scorer.Name(), e.Weight)
		}
		total += e.Weight
		c.components = append(c.components, e)
	}
	if len(c.components) == 0 {
		return nil, ErrNoScorers
	}
	if total == 0 {
		return nil, fmt.Errorf("%w: weights sum to zero", ErrInvalidWeight)
	}

	for i := range c.components {
		c.components[i].Weight /= total
	}
	return c, nil
}

// Score returns the weighted sum of the component scores. The error is
// always nil.
func (c *CompositeScorer) Score(rawURL string, sctx Context) (float64, error) {
	sum := 0.0
	for _, e := range c.components {
		sum += e.Weight * c.componentScore(e.Scorer, rawURL, sctx)
	}
	return Clamp(sum), nil
}

// componentScore runs one scorer, substituting Neutral on failure.
func (c *CompositeScorer) componentScore(s Scorer, rawURL string, sctx Context) (score float64) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("scorer panicked", "scorer", s.Name(), "url", rawURL, "panic", r)
			score = Neutral
		}
	}()

	v, err := s.Score(rawURL, sctx)
	if err != nil {
		c.logger.Debug("scorer failed", "scorer", s.Name(), "url", rawURL, "error", err)
		return Neutral
	}
	if math.IsNaN(v) {
		c.logger.Debug("scorer returned NaN", "scorer", s.Name(), "url", rawURL)
		return Neutral
	}
	return Clamp(v)
}

// Observe forwards the link to every component that implements Observer.
func (c *CompositeScorer) Observe(target, referrer string) {
	for _, e := range c.components {
		if o, ok := e.Scorer.(Observer); ok {
			o.Observe(target, referrer)
		}
	}
}

// Weights returns the normalized weight of each component, keyed by name.
// Components sharing a name have their weights added.
func (c *CompositeScorer) Weights() map[string]float64 {
	weights := make(map[string]float64, len(c.components))
	for _, e := range c.components {
		weights[e.Scorer.Name()] += e.Weight
	}
	return weights
}

// Name returns "composite(<component names>)".
func (c *CompositeScorer) Name() string {
	names := make([]string, 0, len(c.components))
	for _, e := range c.components {
		names = append(names, e.Scorer.Name())
	}
	return "composite(" + strings.Join(names, ",") + ")"
}
