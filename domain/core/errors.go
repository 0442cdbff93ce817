package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	ErrNotFound    = errors.New("resource not found")
	ErrRunNotFound = fmt.Errorf("%w: run", ErrNotFound)

	// Input validation errors
	ErrNegativeAbundance   = errors.New("abundances must be non-negative")
	ErrInvalidPermutations = errors.New("nperm must be at least 1")
	ErrGroupingMismatch    = errors.New("grouping length does not match number of sites")
	ErrEmptyCommunity      = errors.New("community matrix has no sites or no species")
	ErrRaggedMatrix        = errors.New("community matrix rows differ in length")
	ErrNonFinite           = errors.New("abundances must be finite")

	// Computation errors
	ErrEffortExceedsTotal = errors.New("rarefaction effort exceeds total individuals")
	ErrInvalidEffort      = errors.New("rarefaction effort must be positive")
)

// NewNotFoundError builds a not-found error for a resource
func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

// IsNotFoundError reports whether err is a not-found error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInputError reports whether err stems from malformed community input
func IsInputError(err error) bool {
	return errors.Is(err, ErrNegativeAbundance) ||
		errors.Is(err, ErrInvalidPermutations) ||
		errors.Is(err, ErrGroupingMismatch) ||
		errors.Is(err, ErrEmptyCommunity) ||
		errors.Is(err, ErrRaggedMatrix) ||
		errors.Is(err, ErrNonFinite)
}
