package health

import "errors"

// ErrCheckTimeout is the error of a check that did not finish within the
// aggregator timeout.
var ErrCheckTimeout = errors.New("health: check timeout")
