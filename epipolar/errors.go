package epipolar

import "errors"

var (
	// ErrInsufficientCorrespondences is returned when fewer correspondences
	// are available than the minimal sample needs.
	ErrInsufficientCorrespondences = errors.New("insufficient correspondences")

	// ErrInvalidInput is returned when a correspondence has non-finite or
	// malformed coordinates.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDegenerateModel is returned when the solver cannot produce a finite
	// matrix, and by Estimate when no trial did.
	ErrDegenerateModel = errors.New("degenerate model")
)
