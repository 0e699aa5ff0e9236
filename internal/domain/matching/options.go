package matching

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithWeights replaces the axis weights.
func WithWeights(w Weights) Option {
	return func(e *Engine) {
		e.weights = w
	}
}

// WithDreamBrandBonus sets the bonus per dream brand rank; bonus[0] is rank 1.
func WithDreamBrandBonus(bonus []float64) Option {
	return func(e *Engine) {
		if len(bonus) > 0 {
			e.bonus = append([]float64(nil), bonus...)
		}
	}
}

// WithStrongMatchThreshold sets the score a match needs to count as strong.
func WithStrongMatchThreshold(threshold float64) Option {
	return func(e *Engine) {
		if threshold > 0 && threshold <= maxScore {
			e.threshold = threshold
		}
	}
}
