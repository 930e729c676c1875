package recorder

import "errors"

// Domain-level error values returned by the recorder.
var (
	ErrRecordTooLarge        = errors.New("record too large")
	ErrInvalidSession        = errors.New("invalid session")
	ErrUnknownSession        = errors.New("unknown session")
	ErrInvalidStorageTier    = errors.New("invalid storage tier")
	ErrInvalidRecorderConfig = errors.New("invalid recorder config")
)
