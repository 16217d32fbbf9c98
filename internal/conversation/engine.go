// Package conversation implements the multi-step chat flow that assembles a
// validated reservation request one field at a time, plus the command
// surface (/start, /cancel, /status, ...).  Inputs from one chat are
// processed strictly in order; different chats advance concurrently.
package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyeonwoo/railbot/internal/admission"
	"github.com/hyeonwoo/railbot/internal/messages"
	"github.com/hyeonwoo/railbot/internal/model"
	"github.com/hyeonwoo/railbot/internal/provider"
	"github.com/hyeonwoo/railbot/internal/repository"
	"github.com/hyeonwoo/railbot/internal/telegram"
	"github.com/hyeonwoo/railbot/internal/utils"
)

// Config carries the conversation-level settings.
type Config struct {
	// AdminSecretHash is the bcrypt hash of the operator bypass secret.
	// When empty the bypass at the start-confirm step is disabled.
	AdminSecretHash string
	// AdminChatID limits /cancelall, /broadcast and /allusers to one chat.
	// Empty means unrestricted (development mode).
	AdminChatID string
	// Operator credentials used by the bypass path.
	OperatorLoginID     string
	OperatorLoginSecret string
	// LoginTimeout bounds the provider login performed mid-conversation.
	LoginTimeout time.Duration
}

// Engine drives the conversation state machine.  One Engine serves every
// chat; per-chat state lives in the session store.
type Engine struct {
	cfg       Config
	sessions  *repository.SessionStore
	allow     repository.AllowList
	control   *admission.Controller
	providers provider.Factory
	messenger telegram.Messenger
	subs      *repository.SubscriberStore
	logger    *zap.Logger
	now       func() time.Time
}

// New wires an Engine.  The now argument may be nil, defaulting to
// time.Now; tests inject a fixed clock to pin date and time validation.
func New(cfg Config, sessions *repository.SessionStore, allow repository.AllowList,
	control *admission.Controller, providers provider.Factory,
	messenger telegram.Messenger, subs *repository.SubscriberStore,
	logger *zap.Logger, now func() time.Time) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	if cfg.LoginTimeout <= 0 {
		cfg.LoginTimeout = 20 * time.Second
	}
	return &Engine{
		cfg:       cfg,
		sessions:  sessions,
		allow:     allow,
		control:   control,
		providers: providers,
		messenger: messenger,
		subs:      subs,
		logger:    logger,
		now:       now,
	}
}

func isAffirmative(s string) bool {
	u := strings.ToUpper(strings.TrimSpace(s))
	return u == "Y" || u == "YES"
}

func isNegative(s string) bool {
	u := strings.ToUpper(strings.TrimSpace(s))
	return u == "N" || u == "NO"
}

// HandleText processes one inbound chat message: commands first, then the
// state machine for free text.
func (e *Engine) HandleText(ctx context.Context, chatID, text string) {
	text = strings.TrimSpace(text)

	switch text {
	case "/start":
		e.cmdStart(ctx, chatID)
		return
	case "/cancel":
		e.cmdCancel(ctx, chatID)
		return
	case "/status":
		e.cmdStatus(ctx, chatID)
		return
	case "/subscribe":
		e.cmdSubscribe(ctx, chatID)
		return
	case "/cancelall":
		e.cmdCancelAll(ctx, chatID)
		return
	case "/allusers":
		e.cmdAllUsers(ctx, chatID)
		return
	case "/help":
		e.send(ctx, chatID, messages.Help)
		return
	}
	if rest, ok := strings.CutPrefix(text, "/broadcast "); ok {
		e.cmdBroadcast(ctx, chatID, strings.TrimSpace(rest))
		return
	}
	if strings.HasPrefix(text, "/") {
		e.send(ctx, chatID, messages.UnknownCommand)
		return
	}

	e.sessions.Do(chatID, func(s *model.Session) {
		switch {
		case s.State == model.StateLocked:
			e.sendAlreadyRunning(ctx, s)
		case s.State == model.StateIdle:
			e.send(ctx, chatID, messages.NoProcess)
		case e.control.BusyFor(chatID):
			// Another session's job is running: refuse to progress even a
			// conversation that is already mid-flow.
			e.send(ctx, chatID, messages.SystemBusy)
		default:
			e.advance(ctx, s, text)
		}
	})
}

// advance runs the state's input handler.  Callers hold the session lock.
func (e *Engine) advance(ctx context.Context, s *model.Session, input string) {
	switch s.State {
	case model.StateAwaitingStartConfirm:
		e.stateStartConfirm(ctx, s, input)
	case model.StateAwaitingLoginID:
		e.stateLoginID(ctx, s, input)
	case model.StateAwaitingLoginSecret:
		e.stateLoginSecret(ctx, s, input)
	case model.StateAwaitingDate:
		e.stateDate(ctx, s, input)
	case model.StateAwaitingOrigin:
		e.stateOrigin(ctx, s, input)
	case model.StateAwaitingDestination:
		e.stateDestination(ctx, s, input)
	case model.StateAwaitingEarliestTime:
		e.stateEarliestTime(ctx, s, input)
	case model.StateAwaitingLatestTime:
		e.stateLatestTime(ctx, s, input)
	case model.StateAwaitingTrainClass:
		e.stateTrainClass(ctx, s, input)
	case model.StateAwaitingSeatPref:
		e.stateSeatPref(ctx, s, input)
	case model.StateAwaitingConfirmation:
		e.stateConfirmation(ctx, s, input)
	default:
		e.send(ctx, s.ID, messages.WrongInput)
	}
}

// ----- commands -----

func (e *Engine) cmdStart(ctx context.Context, chatID string) {
	e.sessions.Do(chatID, func(s *model.Session) {
		if s.State == model.StateLocked {
			e.sendAlreadyRunning(ctx, s)
			return
		}
		s.State = model.StateAwaitingStartConfirm
		s.Request = model.ReservationRequest{}
		e.send(ctx, chatID, messages.Start)
	})
}

func (e *Engine) cmdCancel(ctx context.Context, chatID string) {
	if !e.control.Cancel(chatID) {
		e.send(ctx, chatID, messages.NoJobRunning)
		return
	}
	var loginID string
	e.sessions.Do(chatID, func(s *model.Session) {
		loginID = s.Credentials.LoginID
		s.Reset()
	})
	e.broadcast(ctx, fmt.Sprintf("The reservation job of %s has been stopped.", loginID))
	e.send(ctx, chatID, messages.ReserveFinished)
}

func (e *Engine) cmdStatus(ctx context.Context, chatID string) {
	jobs := e.control.ListActive()
	ids := make([]string, 0, len(jobs))
	for _, j := range jobs {
		ids = append(ids, j.OwnerLoginID)
	}
	e.send(ctx, chatID, fmt.Sprintf("%d reservation job(s) running. Users: %v", len(jobs), ids))
}

func (e *Engine) cmdSubscribe(ctx context.Context, chatID string) {
	added, err := e.subs.Add(ctx, chatID)
	if err != nil {
		e.logger.Warn("subscribe failed", zap.String("chat", chatID), zap.Error(err))
		e.send(ctx, chatID, messages.TemporaryError)
		return
	}
	if added {
		e.send(ctx, chatID, messages.SubscribeDone)
	} else {
		e.send(ctx, chatID, messages.SubscribeAlready)
	}
}

func (e *Engine) cmdCancelAll(ctx context.Context, chatID string) {
	if !e.isAdmin(chatID) {
		e.send(ctx, chatID, messages.NotAuthorized)
		return
	}
	jobs := e.control.CancelAll()
	ids := make([]string, 0, len(jobs))
	for _, j := range jobs {
		ids = append(ids, j.OwnerLoginID)
	}
	e.send(ctx, chatID, fmt.Sprintf("Stopped %d running job(s). Users: %v", len(jobs), ids))
	for _, j := range jobs {
		e.send(ctx, j.OwnerSessionID, messages.CancelledByAdmin)
		e.sessions.Do(j.OwnerSessionID, func(s *model.Session) { s.Reset() })
	}
}

func (e *Engine) cmdAllUsers(ctx context.Context, chatID string) {
	if !e.isAdmin(chatID) {
		e.send(ctx, chatID, messages.NotAuthorized)
		return
	}
	ids := e.sessions.LoginIDs()
	e.send(ctx, chatID, fmt.Sprintf("%d known user(s): %v", len(ids), ids))
}

func (e *Engine) cmdBroadcast(ctx context.Context, chatID, text string) {
	if !e.isAdmin(chatID) {
		e.send(ctx, chatID, messages.NotAuthorized)
		return
	}
	if text == "" {
		e.send(ctx, chatID, messages.WrongInput)
		return
	}
	e.broadcast(ctx, text)
}

func (e *Engine) isAdmin(chatID string) bool {
	return e.cfg.AdminChatID == "" || chatID == e.cfg.AdminChatID
}

// ----- state handlers -----

func (e *Engine) stateStartConfirm(ctx context.Context, s *model.Session, input string) {
	if isAffirmative(input) {
		s.State = model.StateAwaitingLoginID
		e.send(ctx, s.ID, messages.PromptLoginID)
		return
	}
	if e.cfg.AdminSecretHash != "" && utils.VerifySecret(e.cfg.AdminSecretHash, input) {
		if e.cfg.OperatorLoginID == "" || e.cfg.OperatorLoginSecret == "" {
			s.Reset()
			e.send(ctx, s.ID, messages.OperatorNotConfigured)
			return
		}
		s.Credentials = model.Credentials{
			LoginID:     e.cfg.OperatorLoginID,
			LoginSecret: e.cfg.OperatorLoginSecret,
		}
		if err := e.tryLogin(ctx, s.Credentials); err != nil {
			e.logger.Warn("operator login failed", zap.Error(err))
			s.Reset()
			e.send(ctx, s.ID, messages.OperatorLoginFailed)
			return
		}
		s.State = model.StateAwaitingDate
		e.send(ctx, s.ID, messages.LoginSuccess)
		return
	}
	s.Reset()
	e.send(ctx, s.ID, messages.ReserveInitCancelled)
}

func (e *Engine) stateLoginID(ctx context.Context, s *model.Session, input string) {
	if !strings.Contains(input, "-") {
		e.send(ctx, s.ID, messages.InvalidLoginIDFormat)
		return
	}
	allowed, err := e.allow.Contains(ctx, input)
	if err != nil {
		e.logger.Error("allow-list lookup failed", zap.Error(err))
		e.send(ctx, s.ID, messages.TemporaryError)
		return
	}
	if !allowed {
		// Security-relevant rejection: the user gets no detail, the
		// subscribers get the identity that was tried.
		e.broadcast(ctx, fmt.Sprintf("%s is not a registered user.", input))
		s.Reset()
		return
	}
	s.Credentials.LoginID = input
	s.State = model.StateAwaitingLoginSecret
	e.send(ctx, s.ID, messages.PromptLoginSecret)
}

func (e *Engine) stateLoginSecret(ctx context.Context, s *model.Session, input string) {
	s.Credentials.LoginSecret = input
	if err := e.tryLogin(ctx, s.Credentials); err == nil {
		s.State = model.StateAwaitingDate
		e.send(ctx, s.ID, messages.LoginSuccess)
		return
	}
	// The login failed; the same input doubles as the retry/abort answer.
	if isAffirmative(input) {
		s.State = model.StateAwaitingLoginID
		e.send(ctx, s.ID, messages.PromptLoginID)
		return
	}
	if isNegative(input) {
		s.Reset()
		e.send(ctx, s.ID, messages.ReserveFinished)
		return
	}
	e.send(ctx, s.ID, fmt.Sprintf(messages.LoginFailedRetry, s.Credentials.LoginID))
}

func (e *Engine) stateDate(ctx context.Context, s *model.Session, input string) {
	if !e.validDate(input) {
		e.send(ctx, s.ID, messages.InvalidDate)
		return
	}
	s.Request.DepartureDate = input
	s.State = model.StateAwaitingOrigin
	e.send(ctx, s.ID, messages.PromptOrigin)
}

func (e *Engine) stateOrigin(ctx context.Context, s *model.Session, input string) {
	// Station tokens are accepted unconditionally; the provider validates
	// them at search time.
	s.Request.Origin = input
	s.State = model.StateAwaitingDestination
	e.send(ctx, s.ID, messages.PromptDestination)
}

func (e *Engine) stateDestination(ctx context.Context, s *model.Session, input string) {
	s.Request.Destination = input
	s.State = model.StateAwaitingEarliestTime
	e.send(ctx, s.ID, messages.PromptEarliestTime)
}

func (e *Engine) stateEarliestTime(ctx context.Context, s *model.Session, input string) {
	if !validHHMM(input) {
		e.send(ctx, s.ID, messages.InvalidTime)
		return
	}
	if s.Request.DepartureDate == e.now().Format("20060102") && input < e.now().Format("1504") {
		e.send(ctx, s.ID, messages.TimeInPast)
		return
	}
	s.Request.EarliestTime = input
	s.State = model.StateAwaitingLatestTime
	e.send(ctx, s.ID, messages.PromptLatestTime)
}

func (e *Engine) stateLatestTime(ctx context.Context, s *model.Session, input string) {
	if !validHHMM(input) {
		e.send(ctx, s.ID, messages.InvalidTime)
		return
	}
	// Fixed-width HHMM makes the string comparison a time comparison.
	if input < s.Request.EarliestTime {
		e.send(ctx, s.ID, messages.LatestBeforeEarliest)
		return
	}
	s.Request.LatestTime = input
	s.State = model.StateAwaitingTrainClass
	e.send(ctx, s.ID, messages.PromptTrainClass)
}

func (e *Engine) stateTrainClass(ctx context.Context, s *model.Session, input string) {
	switch strings.TrimSpace(input) {
	case "1":
		s.Request.TrainClass = model.TrainClassHighSpeedOnly
	case "2":
		s.Request.TrainClass = model.TrainClassAny
	default:
		e.send(ctx, s.ID, messages.InvalidTrainClass+"\n"+messages.PromptTrainClass)
		return
	}
	s.State = model.StateAwaitingSeatPref
	e.send(ctx, s.ID, messages.PromptSeatPref)
}

func (e *Engine) stateSeatPref(ctx context.Context, s *model.Session, input string) {
	switch strings.TrimSpace(input) {
	case "1":
		s.Request.SeatPref = model.SeatGeneralFirst
	case "2":
		s.Request.SeatPref = model.SeatGeneralOnly
	case "3":
		s.Request.SeatPref = model.SeatSpecialFirst
	case "4":
		s.Request.SeatPref = model.SeatSpecialOnly
	default:
		e.send(ctx, s.ID, messages.InvalidSeatPref+"\n"+messages.PromptSeatPref)
		return
	}
	s.State = model.StateAwaitingConfirmation
	e.send(ctx, s.ID, messages.ConfirmPrefix+s.Request.Summary()+messages.ConfirmSuffix)
}

func (e *Engine) stateConfirmation(ctx context.Context, s *model.Session, input string) {
	switch {
	case isAffirmative(input):
		if !s.Request.Complete() {
			s.Reset()
			e.send(ctx, s.ID, messages.StartError)
			return
		}
		job, err := e.control.StartJob(s.ID, s.Credentials, s.Request)
		if err != nil {
			// Slot occupied: the request is discarded, not parked.
			s.Reset()
			e.send(ctx, s.ID, messages.SystemBusy)
			return
		}
		s.State = model.StateLocked
		s.JobID = job.ID
		e.send(ctx, s.ID, messages.ReserveStarted)
	case isNegative(input):
		s.Reset()
		e.send(ctx, s.ID, messages.ReserveCancelled)
	default:
		e.send(ctx, s.ID, messages.ConfirmPrefix+s.Request.Summary()+messages.ConfirmSuffix)
	}
}

// ----- helpers -----

// tryLogin verifies credentials against the provider using a throwaway
// client so conversation-time checks never share session state with a
// worker.
func (e *Engine) tryLogin(ctx context.Context, creds model.Credentials) error {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.LoginTimeout)
	defer cancel()
	return e.providers().Login(ctx, creds.LoginID, creds.LoginSecret)
}

func (e *Engine) validDate(input string) bool {
	if len(input) != 8 {
		return false
	}
	if _, err := time.ParseInLocation("20060102", input, time.Local); err != nil {
		return false
	}
	// Date-only comparison; the fixed-width format makes string order
	// calendar order.
	return input >= e.now().Format("20060102")
}

func validHHMM(s string) bool {
	if len(s) != 4 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s[:2] < "24" && s[2:] < "60"
}

func (e *Engine) sendAlreadyRunning(ctx context.Context, s *model.Session) {
	e.send(ctx, s.ID, messages.AlreadyRunningPrefix+s.Request.Summary())
}

func (e *Engine) send(ctx context.Context, chatID, text string) {
	if err := e.messenger.SendText(ctx, chatID, text); err != nil {
		e.logger.Warn("send failed", zap.String("chat", chatID), zap.Error(err))
	}
}

// broadcast fans text out to every subscriber.  Failures are logged per
// recipient and never stop the loop.
func (e *Engine) broadcast(ctx context.Context, text string) {
	ids, err := e.subs.Members(ctx)
	if err != nil {
		e.logger.Warn("subscriber listing failed", zap.Error(err))
		return
	}
	for _, id := range ids {
		e.send(ctx, id, text)
	}
}
