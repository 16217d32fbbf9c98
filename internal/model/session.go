package model

// SessionState encodes the position of a user inside the reservation
// conversation.  States are integer-coded so that the conversation layer can
// advance through them with an exhaustive switch.  StateIdle means no
// conversation is in progress; StateLocked means a reservation job is running
// and all further chat input is refused until the job terminates.
type SessionState int

const (
	StateIdle SessionState = iota // 0 – no conversation in progress
	StateAwaitingStartConfirm     // 1 – waiting for Y/N after /start
	StateAwaitingLoginID          // 2 – waiting for the provider login id
	StateAwaitingLoginSecret      // 3 – waiting for the provider password
	StateAwaitingDate             // 4 – waiting for the departure date
	StateAwaitingOrigin           // 5 – waiting for the origin station
	StateAwaitingDestination      // 6 – waiting for the destination station
	StateAwaitingEarliestTime     // 7 – waiting for the earliest departure time
	StateAwaitingLatestTime       // 8 – waiting for the latest departure time
	StateAwaitingTrainClass       // 9 – waiting for the train class choice
	StateAwaitingSeatPref         // 10 – waiting for the seat preference choice
	StateAwaitingConfirmation     // 11 – waiting for final Y/N before submit
	StateLocked                   // 12 – job running, input refused
)

// CredentialsNotSet is the placeholder stored in a fresh session before the
// user has supplied real provider credentials.
const CredentialsNotSet = "not-set"

// Credentials carries the booking provider login pair collected during the
// conversation.  The secret is kept in memory only for the lifetime of the
// session; it is never persisted.
type Credentials struct {
	LoginID     string // provider login id (phone-number shaped)
	LoginSecret string // provider password
}

// Session holds the per-user conversational state plus the reservation
// request being assembled.  Sessions are created lazily on first contact and
// reused across conversations; they are reset to StateIdle, never deleted.
//
// Fields:
//
//	ID          – opaque chat/user identifier.
//	State       – current conversation state, exactly one at a time.
//	Credentials – provider login pair, defaults to CredentialsNotSet.
//	Request     – partially-filled reservation request; only meaningful
//	              between StateAwaitingDate and StateAwaitingConfirmation.
//	JobID       – id of the session's active job, or "" when none.
type Session struct {
	ID          string
	State       SessionState
	Credentials Credentials
	Request     ReservationRequest
	JobID       string
}

// NewSession returns an idle session for the given chat id with placeholder
// credentials and an empty request.
func NewSession(id string) *Session {
	return &Session{
		ID:    id,
		State: StateIdle,
		Credentials: Credentials{
			LoginID:     CredentialsNotSet,
			LoginSecret: CredentialsNotSet,
		},
	}
}

// Reset returns the session to StateIdle and clears the in-flight request
// and job handle.  Credentials are kept so a returning user does not need to
// re-enter them mid-conversation after a login retry.
func (s *Session) Reset() {
	s.State = StateIdle
	s.Request = ReservationRequest{}
	s.JobID = ""
}
