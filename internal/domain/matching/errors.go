package matching

import "errors"

// ErrInvalidWeights is returned by New when the weights cannot produce a score.
var ErrInvalidWeights = errors.New("invalid match weights")
