package busstatus

import "errors"

var (
	// Cycle level. The cycle is abandoned.
	ErrFetch  = errors.New("fetching feed")
	ErrDecode = errors.New("decoding feed")

	// Record level. The vehicle is left out of the cycle.
	ErrMissingArrivalTime = errors.New("missing arrival time")
	ErrUnknownStop        = errors.New("unknown stop")
)
