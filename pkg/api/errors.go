package api

import "errors"

// Error taxonomy, per the daemon's error-handling design: configuration
// errors abort before any thread starts; warning-class conditions (pool
// underrun, queue under/overflow, hook rejects, timer overrun) are
// accounted as counters and never returned on the hot path; only the
// conditions below are ever surfaced as a Go error.
var (
	ErrInvalidConfig    = errors.New("villasnode: invalid configuration")
	ErrUnknownNodeType  = errors.New("villasnode: unknown node type")
	ErrUnknownHookType  = errors.New("villasnode: unknown hook type")
	ErrNodeNotFound     = errors.New("villasnode: node not found")
	ErrDuplicateNode    = errors.New("villasnode: duplicate node name")
	ErrDuplicatePath    = errors.New("villasnode: duplicate path")
	ErrNoDestinations   = errors.New("villasnode: path has no destinations")
	ErrForeignSample    = errors.New("villasnode: sample does not belong to this pool")
	ErrPathNotPrepared  = errors.New("villasnode: path not prepared")
	ErrPathNotRunning   = errors.New("villasnode: path not running")
	ErrReaderRegistered = errors.New("villasnode: reader registration after queue activity")
	ErrIO               = errors.New("villasnode: node I/O fault")

	// Protocol-error subcategories (§4.6).
	ErrMissingBytes    = errors.New("villasnode: frame truncated")
	ErrMissingConfig   = errors.New("villasnode: data frame with no bound config")
	ErrInvalidValue    = errors.New("villasnode: invalid value in frame")
	ErrInvalidChecksum = errors.New("villasnode: CRC mismatch")
	ErrInvalidSlice    = errors.New("villasnode: invalid frame slice")
)
