package forecast

import "errors"

var (
	// ErrRemoteUnavailable marks a remote source failure: network error,
	// timeout, or a non-2xx response. Recovered via local fallback and
	// never surfaced past the forecaster.
	ErrRemoteUnavailable = errors.New("remote forecast source unavailable")

	// ErrMalformedResponse marks a remote payload that does not parse into
	// forecast parameters. Treated exactly like ErrRemoteUnavailable.
	ErrMalformedResponse = errors.New("malformed remote forecast response")
)
