package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrPermissionDenied means the location permission was not granted.
	ErrPermissionDenied = errors.New("location permission denied")

	// ErrLocationUnavailable means the platform could not produce a fix.
	ErrLocationUnavailable = errors.New("location unavailable")

	// ErrNetworkFailure covers transport errors and non-success responses
	// from the places provider.
	ErrNetworkFailure = errors.New("network failure")

	// ErrMalformedResponse is a provider payload that could not be used.
	// It matches ErrNetworkFailure under errors.Is.
	ErrMalformedResponse = fmt.Errorf("malformed response: %w", ErrNetworkFailure)

	// ErrWriteFailed is a rejected favorites write.
	ErrWriteFailed = errors.New("favorites write failed")
)
