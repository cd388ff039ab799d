package scheduler

import "time"

// ControlState is the named, mostly-immutable bundle the engine holds
// exactly one current value of. Values are treated as
// immutable once handed to SetControlState; callers build a new value
// (starting from a copy of an existing one and changing its fields)
// rather than mutating a live ControlState.
type ControlState struct {
	Description string

	// RejectRequestsReason, if non-empty, causes every submission to be
	// rejected with this text.
	RejectRequestsReason string

	IgnoreDelays                    bool
	TimeoutAllPendingRequests       bool
	TimeoutRequestsAfterFailedAttempt bool

	// SpooldownTargetTimestamp is non-positive (zero value) when there
	// is no active drain target.
	SpooldownTargetTimestamp time.Time

	LimitWaitingForProcessingThread bool
	LimitWaitingForTicket           bool

	WaitForTickets WaitForTickets
}

// hasSpooldownTarget reports whether SpooldownTargetTimestamp is set.
func (cs ControlState) hasSpooldownTarget() bool {
	return !cs.SpooldownTargetTimestamp.IsZero()
}

// rejectsRequests reports whether submissions should be declined.
func (cs ControlState) rejectsRequests() bool {
	return cs.RejectRequestsReason != ""
}

// Predefined control states.
var (
	NotStarted = ControlState{
		Description:          "NOT_STARTED",
		RejectRequestsReason: "service has not been started",
	}

	Running = ControlState{
		Description:    "RUNNING",
		WaitForTickets: WaitNormally,
	}

	ShutdownInProgress = ControlState{
		Description:                      "SHUTDOWN_IN_PROGRESS",
		RejectRequestsReason:             "service is shutting down",
		LimitWaitingForProcessingThread:  true,
		LimitWaitingForTicket:            true,
	}

	Shutdown = ControlState{
		Description:                "SHUTDOWN",
		RejectRequestsReason:       "service has been shut down",
		TimeoutAllPendingRequests:  true,
	}
)

// isShutdown reports whether cs is the terminal Shutdown state, by
// description, since callers may hand in custom values that otherwise
// compare unequal to the exported Shutdown value.
func (cs ControlState) isShutdown() bool {
	return cs.Description == Shutdown.Description
}

func (cs ControlState) isNotStarted() bool {
	return cs.Description == NotStarted.Description
}
