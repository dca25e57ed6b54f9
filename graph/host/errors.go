// Package host is a reference runtime that hosts a flowchart engine.
//
// A Runtime owns one flowchart instance. It implements graph.Host: actions
// scheduled by the engine are Activities, run one at a time after the
// engine call that scheduled them returns, and their outcomes are fed back
// through Engine.OnLeafCompleted. WaitFor activities park the instance on a
// named bookmark until Resume is called, which is the point where an idle
// instance can be snapshotted, persisted and later restored in another
// process from its Definition alone.
package host

import "errors"

// ErrUnsupportedAction is returned when the engine schedules an action
// that is not an *Activity.
var ErrUnsupportedAction = errors.New("action is not a host activity")

// ErrUnknownBookmark is returned by Resume for a bookmark that is not
// waiting.
var ErrUnknownBookmark = errors.New("unknown bookmark")

// ErrBusy is returned by Snapshot when activities are still queued.
var ErrBusy = errors.New("runtime has queued work")

// ErrChecksumMismatch is returned by Restore when a snapshot was modified
// after it was taken.
var ErrChecksumMismatch = errors.New("snapshot checksum mismatch")

// ErrDefinitionMismatch is returned by Restore when the snapshot was taken
// from a different flowchart.
var ErrDefinitionMismatch = errors.New("snapshot belongs to a different definition")

// ErrActivityTimeout wraps activity attempts that exceeded their timeout.
var ErrActivityTimeout = errors.New("activity timed out")

// ErrInvalidRetryPolicy is returned by RetryPolicy.Validate.
var ErrInvalidRetryPolicy = errors.New("invalid retry policy")
