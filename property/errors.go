package property

import "errors"

// Sentinel errors for collection mutations.
var (
	ErrNotCollection   = errors.New("property is not a collection")
	ErrIndexOutOfRange = errors.New("index out of range")
)
