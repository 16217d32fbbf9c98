package model

// OutcomeStatus is the terminal result class of a reservation job.  The
// integer values are the wire codes carried on the completion callback:
// 1 success, 0 failure/exhausted/cancelled, -1 hard error.
type OutcomeStatus int

const (
	OutcomeError   OutcomeStatus = -1
	OutcomeFailure OutcomeStatus = 0
	OutcomeSuccess OutcomeStatus = 1
)

// Outcome is the terminal report of a reservation job.  Detail carries the
// reservation description on success or a short reason otherwise.
type Outcome struct {
	Status    OutcomeStatus
	Detail    string
	Cancelled bool // true when the job was terminated externally
}

// Job is one admitted, running reservation attempt.  Exactly one session owns
// a job, and the admission registry holds at most one job system-wide.
//
// Fields:
//
//	ID             – opaque job identifier (uuid).
//	OwnerSessionID – chat id of the owning session.
//	OwnerLoginID   – provider login id, used in status listings.
type Job struct {
	ID             string
	OwnerSessionID string
	OwnerLoginID   string
}
