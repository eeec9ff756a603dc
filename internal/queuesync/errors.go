package queuesync

import (
	"errors"
	"fmt"
)

// ErrNoActiveQueue reports that the player abstraction has no queue for the
// requested player. Not retryable.
var ErrNoActiveQueue = errors.New("no active queue for player")

// DegradedError marks a backend that is reachable but will not serve full
// queue queries (unauthenticated or mid-setup). Snapshot reads recover from
// it by falling back to a limited view; mutations surface it.
type DegradedError struct {
	Marker string
}

func (e *DegradedError) Error() string {
	return fmt.Sprintf("queue service degraded: %s", e.Marker)
}

// NetworkError wraps a transport-level failure (refused, reset, timeout at
// the HTTP layer). The whole operation may be retried by the caller.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("queue service unreachable: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ProtocolError reports a malformed wire payload. Raw keeps the offending
// bytes for diagnosis.
type ProtocolError struct {
	Reason string
	Raw    []byte
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: %s", e.Reason)
}

// IndexError reports a caller-supplied index that does not resolve against
// the current snapshot. Limited is true when the snapshot did not carry
// item identifiers at all.
type IndexError struct {
	Index   int
	Length  int
	Limited bool
}

func (e *IndexError) Error() string {
	if e.Limited {
		return fmt.Sprintf("index %d unresolvable: snapshot is limited", e.Index)
	}
	return fmt.Sprintf("index %d out of range (queue has %d items)", e.Index, e.Length)
}

// TimeoutError reports that a session exceeded its overall deadline. Stage
// names the phase that ran out of time. Never retried automatically: the
// backend command may have partially applied.
type TimeoutError struct {
	Stage string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("session timed out during %s", e.Stage)
}

// ReorderFailed wraps the underlying cause of a failed move. Callers should
// re-fetch the snapshot before deciding whether to retry.
type ReorderFailed struct {
	Err error
}

func (e *ReorderFailed) Error() string {
	return fmt.Sprintf("reorder failed: %v", e.Err)
}

func (e *ReorderFailed) Unwrap() error { return e.Err }

// CommandError is an error reported by the queue service for an otherwise
// well-formed command.
type CommandError struct {
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("queue service rejected command: %s", e.Message)
}
