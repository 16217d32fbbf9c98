// Package messages centralises every user-facing chat string so the
// conversation logic stays readable and the texts can be reviewed in one
// place.
package messages

const (
	Intro = "This is the train reservation bot.\nSend /start to begin."

	Start = "Start a new reservation?\nReply Y to continue or N to abort."

	PromptLoginID = "Enter your provider login id (phone number including '-')."

	PromptLoginSecret = "Enter your provider password."

	LoginSuccess = "Login succeeded.\nEnter the departure date (YYYYMMDD)."

	PromptOrigin = "Date accepted.\nEnter the origin station."

	PromptDestination = "Origin accepted.\nEnter the destination station."

	PromptEarliestTime = "Destination accepted.\nEnter the earliest departure time (HHMM, 24h)."

	PromptLatestTime = "Time accepted.\nEnter the latest departure time (HHMM, 24h)."

	PromptTrainClass = "Choose the train type:\n1. KTX only\n2. Any train"

	PromptSeatPref = "Choose the seat preference:\n1. General first\n2. General only\n3. Special first\n4. Special only"

	ConfirmPrefix = "Confirm this reservation request?\n"

	ConfirmSuffix = "\nReply Y to start or N to abort."

	ReserveStarted = "Reservation job started.\nYou will be notified when it finishes.\nSend /cancel to stop it."

	ReserveFinished = "The reservation job has finished.\nSend /start to begin a new one."

	ReserveCancelled = "Reservation cancelled.\nSend /start to begin a new one."

	ReserveInitCancelled = "Reservation setup aborted.\nSend /start to begin again."

	CancelledByAdmin = "Your reservation job was stopped by the operator."

	NoJobRunning = "No reservation job is in progress."

	NoProcess = "[no reservation process in progress]\nSend /start to begin."

	SystemBusy = "Another user's reservation is currently running. Please contact the operator."

	AlreadyRunningPrefix = "A reservation job is already running:\n"

	WrongInput = "Invalid input. Please try again."

	InvalidLoginIDFormat = "Enter a phone number including '-'. Please try again."

	InvalidDate = "Enter a valid date of the form YYYYMMDD, today or later."

	InvalidTime = "Enter a valid 24-hour time of the form HHMM."

	TimeInPast = "That time has already passed today. Enter a later time."

	LatestBeforeEarliest = "The latest time must not be earlier than the earliest time."

	InvalidTrainClass = "Reply 1 or 2."

	InvalidSeatPref = "Reply 1, 2, 3 or 4."

	LoginFailedRetry = "Login failed for %s.\nReply Y to re-enter the id, N to abort, or send the password again."

	OperatorLoginFailed = "Operator account login failed."

	OperatorNotConfigured = "Operator credentials are not configured."

	TemporaryError = "A temporary error occurred. Please try again."

	SubscribeDone = "You are now subscribed to operational notices."

	SubscribeAlready = "You are already subscribed."

	UnknownCommand = "Unknown command. Send /help for the command list."

	NotAuthorized = "You are not allowed to run this command."

	StartError = "Could not start the reservation job. Send /start to try again."

	Help = "Commands:\n" +
		"/start - begin a reservation\n" +
		"/cancel - stop your running job\n" +
		"/status - list active jobs\n" +
		"/subscribe - receive operational notices\n" +
		"/cancelall - stop all jobs (operator)\n" +
		"/broadcast <text> - notify subscribers (operator)\n" +
		"/allusers - list known users (operator)\n" +
		"/help - this text"
)

const (
	// Outcome notices sent by the result notifier.
	OutcomeSuccessPrefix = "Reservation secured!\n"
	OutcomeFailure       = "The reservation attempt ended without a booking.\nSend /start to try again."
	OutcomeErrorPrefix   = "The reservation job failed: "
)
