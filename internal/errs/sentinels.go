// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Client-side failure taxonomy.
var (
	// ErrValidation indicates local form validation rejected the input; nothing was sent.
	ErrValidation = errors.New("validation failed")

	// ErrNetwork indicates the request never produced a response (dial, TLS, canceled context).
	ErrNetwork = errors.New("network error")

	// ErrParse indicates the response body was not valid JSON.
	ErrParse = errors.New("parse error")

	// ErrAuth indicates the server answered with a non-success status.
	ErrAuth = errors.New("authentication failed")

	// ErrSubmitInProgress indicates a submission is already running for this controller.
	ErrSubmitInProgress = errors.New("submit in progress")

	// ErrNoToken indicates there is no usable session token (missing or expired).
	ErrNoToken = errors.New("no valid token (login required)")
)
