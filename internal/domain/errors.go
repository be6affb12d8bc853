package domain

import "errors"

// ErrDataUnavailable marks an observation series that cannot feed a forecast
// cycle: empty, or with timestamps out of order. It is fatal for the region
// being processed and is surfaced to the caller; other regions continue.
var ErrDataUnavailable = errors.New("observation data unavailable")
