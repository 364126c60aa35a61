package orchestrator

import "errors"

var (
	// ErrNoActiveSession is returned when an operation needs a current
	// company but none has been established yet.
	ErrNoActiveSession = errors.New("no active session: send an utterance or switch company first")

	// ErrUnknownArea is returned for research area ids not in the catalog.
	ErrUnknownArea = errors.New("unknown research area")

	// ErrUnknownFollowUp is returned when a follow-up option id matches no
	// transcript entry.
	ErrUnknownFollowUp = errors.New("unknown follow-up option")

	// ErrCompanyNotResolved is returned when an utterance names no usable
	// company and no session is active to answer in.
	ErrCompanyNotResolved = errors.New("could not determine a company from the message")

	// ErrStopped is returned when the orchestrator has shut down.
	ErrStopped = errors.New("orchestrator stopped")
)
