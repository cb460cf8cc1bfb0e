package observe

import "errors"

// ErrInvalidConfig wraps telemetry configuration failures.
var ErrInvalidConfig = errors.New("observe: invalid config")
