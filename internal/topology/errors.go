package topology

import "errors"

var (
	// ErrMalformedSnapshot reports a snapshot missing the minimum identity
	// fields. The cycle aborts before any write and is not retried.
	ErrMalformedSnapshot = errors.New("malformed snapshot")

	// ErrStageNotReady reports a stage invoked before its predecessor
	// completed. The stage is skipped without partial writes.
	ErrStageNotReady = errors.New("stage dependency not ready")
)
