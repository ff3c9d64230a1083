package multiwgcna

import "errors"

// Error kinds. Callers match them with errors.Is; the concrete errors returned
// by this module wrap one of these with context about where the problem was
// found.
var (
	// ErrInvalidInput marks structural problems with the inputs, such as
	// networks that share no genes or a sample table that lacks a required
	// column. These are fatal and are reported before any computation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDegenerateStatistic marks a statistic that is undefined for the data
	// at hand (e.g., a constant eigengene). These are recorded per module and
	// surfaced as NaN, never escalated.
	ErrDegenerateStatistic = errors.New("degenerate statistic")

	// ErrInsufficientSamples means a stratified split cannot be made because
	// some confound level has too few samples.
	ErrInsufficientSamples = errors.New("insufficient samples")

	// ErrReplicateFailure marks a single permutation replicate that could not
	// be completed. It is recorded, and never fails the whole run.
	ErrReplicateFailure = errors.New("replicate failure")
)
