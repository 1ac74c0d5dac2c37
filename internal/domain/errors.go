package domain

import "errors"

// Sentinel errors for the recallrank packages.
// Use errors.Is to check: errors.Is(err, domain.ErrUnknownCard)
var (
	ErrUnknownCard = errors.New("recallrank: unknown card")
	ErrPrediction  = errors.New("recallrank: prediction failed")
	ErrPersistence = errors.New("recallrank: persistence failed")
)
