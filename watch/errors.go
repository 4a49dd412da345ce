package watch

import "errors"

// Sentinel errors for config-driven construction.
var (
	ErrNilTarget         = errors.New("watch target is nil")
	ErrUnsupportedFormat = errors.New("unsupported config format")
)
