package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hyeonwoo/railbot/internal/admission"
	"github.com/hyeonwoo/railbot/internal/messages"
	"github.com/hyeonwoo/railbot/internal/model"
	"github.com/hyeonwoo/railbot/internal/provider"
	"github.com/hyeonwoo/railbot/internal/repository"
	"github.com/hyeonwoo/railbot/internal/utils"
)

// fakeMessenger records every outbound chat message.
type fakeMessenger struct {
	mu   sync.Mutex
	sent []sentMessage
}

type sentMessage struct {
	chat string
	text string
}

func (m *fakeMessenger) SendText(_ context.Context, chat, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{chat: chat, text: text})
	return nil
}

func (m *fakeMessenger) lastFor(chat string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].chat == chat {
			return m.sent[i].text
		}
	}
	return ""
}

func (m *fakeMessenger) countFor(chat string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sent {
		if s.chat == chat {
			n++
		}
	}
	return n
}

// fakeProvider answers login checks during the conversation.
type fakeProvider struct {
	loginErr error
}

func (p *fakeProvider) Login(context.Context, string, string) error { return p.loginErr }

func (p *fakeProvider) Search(context.Context, provider.SearchQuery) ([]provider.TrainOption, error) {
	return nil, provider.ErrNoResults
}

func (p *fakeProvider) Reserve(context.Context, provider.TrainOption, model.SeatPreference) (provider.ReservationDetails, error) {
	return provider.ReservationDetails{}, provider.ErrSoldOut
}

// fixedNow pins date and time validation to 2026-01-15 10:30 local.
func fixedNow() time.Time {
	return time.Date(2026, 1, 15, 10, 30, 0, 0, time.Local)
}

type testEnv struct {
	engine    *Engine
	messenger *fakeMessenger
	control   *admission.Controller
	sessions  *repository.SessionStore
	subs      *repository.SubscriberStore
	provider  *fakeProvider
}

func newTestEnv(cfg Config, allow repository.AllowList) *testEnv {
	// Admitted jobs just wait for cancellation; outcome handling is the
	// notifier's concern, not the engine's.
	control := admission.New(func(ctx context.Context, _ model.Job, _ model.Credentials, _ model.ReservationRequest) {
		<-ctx.Done()
	})
	p := &fakeProvider{}
	m := &fakeMessenger{}
	sessions := repository.NewSessionStore()
	subs := repository.NewSubscriberStore(nil)
	e := New(cfg, sessions, allow, control, func() provider.Client { return p }, m, subs, nil, fixedNow)
	return &testEnv{engine: e, messenger: m, control: control, sessions: sessions, subs: subs, provider: p}
}

func defaultAllow() repository.StaticAllowList {
	return repository.NewStaticAllowList("010-1111-1111,010-2222-2222")
}

func (env *testEnv) state(chat string) model.SessionState {
	var st model.SessionState
	env.sessions.Do(chat, func(s *model.Session) { st = s.State })
	return st
}

// drive feeds inputs and checks the last reply after each one.  A want of
// "" skips the reply check for that step.
func (env *testEnv) drive(t *testing.T, chat string, steps []struct{ in, want string }) {
	t.Helper()
	ctx := context.Background()
	for i, step := range steps {
		env.engine.HandleText(ctx, chat, step.in)
		if step.want == "" {
			continue
		}
		if got := env.messenger.lastFor(chat); got != step.want {
			t.Fatalf("step %d (%q): got reply %q, want %q", i, step.in, got, step.want)
		}
	}
}

func TestFullReservationFlow(t *testing.T) {
	env := newTestEnv(Config{}, defaultAllow())

	env.drive(t, "100", []struct{ in, want string }{
		{"/start", messages.Start},
		{"Y", messages.PromptLoginID},
		{"010-1111-1111", messages.PromptLoginSecret},
		{"hunter2", messages.LoginSuccess},
		{"20991231", messages.PromptOrigin},
		{"Seoul", messages.PromptDestination},
		{"Busan", messages.PromptEarliestTime},
		{"0900", messages.PromptLatestTime},
		{"1200", messages.PromptTrainClass},
		{"2", messages.PromptSeatPref},
	})

	env.engine.HandleText(context.Background(), "100", "1")
	if got := env.messenger.lastFor("100"); !strings.HasPrefix(got, messages.ConfirmPrefix) {
		t.Fatalf("expected confirmation echo, got %q", got)
	}

	env.engine.HandleText(context.Background(), "100", "Y")
	if got := env.messenger.lastFor("100"); got != messages.ReserveStarted {
		t.Fatalf("expected %q, got %q", messages.ReserveStarted, got)
	}
	if st := env.state("100"); st != model.StateLocked {
		t.Fatalf("expected locked session, got state %d", st)
	}

	jobs := env.control.ListActive()
	if len(jobs) != 1 {
		t.Fatalf("expected 1 active job, got %d", len(jobs))
	}
	if jobs[0].OwnerSessionID != "100" || jobs[0].OwnerLoginID != "010-1111-1111" {
		t.Fatalf("unexpected job ownership: %+v", jobs[0])
	}

	// A locked session answers every further input with the running summary.
	env.engine.HandleText(context.Background(), "100", "hello?")
	if got := env.messenger.lastFor("100"); !strings.HasPrefix(got, messages.AlreadyRunningPrefix) {
		t.Fatalf("expected already-running notice, got %q", got)
	}
}

func TestDateValidation(t *testing.T) {
	env := newTestEnv(Config{}, defaultAllow())
	env.drive(t, "100", []struct{ in, want string }{
		{"/start", messages.Start},
		{"Y", messages.PromptLoginID},
		{"010-1111-1111", messages.PromptLoginSecret},
		{"pw", messages.LoginSuccess},
		{"tomorrow", messages.InvalidDate},
		{"2026011", messages.InvalidDate},
		{"20260114", messages.InvalidDate}, // yesterday relative to the fixed clock
		{"20260115", messages.PromptOrigin},
	})
}

func TestTimeWindowValidation(t *testing.T) {
	env := newTestEnv(Config{}, defaultAllow())
	env.drive(t, "100", []struct{ in, want string }{
		{"/start", messages.Start},
		{"Y", messages.PromptLoginID},
		{"010-1111-1111", messages.PromptLoginSecret},
		{"pw", messages.LoginSuccess},
		{"20260115", messages.PromptOrigin}, // same day as the fixed clock
		{"Seoul", messages.PromptDestination},
		{"Busan", messages.PromptEarliestTime},
		{"9am", messages.InvalidTime},
		{"2460", messages.InvalidTime},
		{"0900", messages.TimeInPast}, // clock is at 10:30
		{"1100", messages.PromptLatestTime},
		{"1030", messages.LatestBeforeEarliest},
		{"1100", messages.PromptTrainClass}, // equal bounds are accepted
	})
}

func TestLoginIDRejected(t *testing.T) {
	env := newTestEnv(Config{}, defaultAllow())
	if _, err := env.subs.Add(context.Background(), "900"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	env.drive(t, "100", []struct{ in, want string }{
		{"/start", messages.Start},
		{"Y", messages.PromptLoginID},
		{"01011111111", messages.InvalidLoginIDFormat},
	})

	before := env.messenger.countFor("100")
	env.engine.HandleText(context.Background(), "100", "010-9999-9999")

	// The user gets silence, the subscribers get the attempted identity.
	if after := env.messenger.countFor("100"); after != before {
		t.Fatalf("expected no reply to the rejected user, got %d new message(s)", after-before)
	}
	if got := env.messenger.lastFor("900"); got != "010-9999-9999 is not a registered user." {
		t.Fatalf("unexpected subscriber notice %q", got)
	}
	if st := env.state("100"); st != model.StateIdle {
		t.Fatalf("expected session reset to idle, got state %d", st)
	}
}

func TestLoginFailureRetryAndAbort(t *testing.T) {
	env := newTestEnv(Config{}, defaultAllow())
	env.provider.loginErr = errors.New("bad credentials")

	env.drive(t, "100", []struct{ in, want string }{
		{"/start", messages.Start},
		{"Y", messages.PromptLoginID},
		{"010-1111-1111", messages.PromptLoginSecret},
		{"wrongpw", "Login failed for 010-1111-1111.\nReply Y to re-enter the id, N to abort, or send the password again."},
		// Y after a failed login is treated as "re-enter the id", even
		// though Y itself would also fail as a password.
		{"Y", messages.PromptLoginID},
		{"010-1111-1111", messages.PromptLoginSecret},
		{"stillwrong", "Login failed for 010-1111-1111.\nReply Y to re-enter the id, N to abort, or send the password again."},
		{"N", messages.ReserveFinished},
	})

	if st := env.state("100"); st != model.StateIdle {
		t.Fatalf("expected idle after abort, got state %d", st)
	}
}

func TestBusySystemBlocksOtherSessions(t *testing.T) {
	env := newTestEnv(Config{}, defaultAllow())

	_, err := env.control.StartJob("100", model.Credentials{LoginID: "010-1111-1111"}, completeRequest())
	if err != nil {
		t.Fatalf("start job: %v", err)
	}

	env.drive(t, "200", []struct{ in, want string }{
		{"/start", messages.Start},
		{"Y", messages.SystemBusy},
	})
}

func TestConfirmationRace(t *testing.T) {
	env := newTestEnv(Config{}, defaultAllow())

	// Walk session 200 to the confirmation step first.
	env.drive(t, "200", []struct{ in, want string }{
		{"/start", messages.Start},
		{"Y", messages.PromptLoginID},
		{"010-2222-2222", messages.PromptLoginSecret},
		{"pw", messages.LoginSuccess},
		{"20991231", messages.PromptOrigin},
		{"Seoul", messages.PromptDestination},
		{"Busan", messages.PromptEarliestTime},
		{"0900", messages.PromptLatestTime},
		{"1200", messages.PromptTrainClass},
		{"2", messages.PromptSeatPref},
		{"1", ""},
	})

	// Another session grabs the slot between the busy check and the
	// confirmation, so admission itself has to reject.
	if _, err := env.control.StartJob("100", model.Credentials{LoginID: "010-1111-1111"}, completeRequest()); err != nil {
		t.Fatalf("start job: %v", err)
	}
	env.sessions.Do("200", func(s *model.Session) {
		env.engine.stateConfirmation(context.Background(), s, "Y")
	})

	if got := env.messenger.lastFor("200"); got != messages.SystemBusy {
		t.Fatalf("expected busy notice, got %q", got)
	}
	if st := env.state("200"); st != model.StateIdle {
		t.Fatalf("expected discarded request and idle session, got state %d", st)
	}
}

func TestCancelCommand(t *testing.T) {
	env := newTestEnv(Config{}, defaultAllow())
	if _, err := env.subs.Add(context.Background(), "900"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	env.engine.HandleText(context.Background(), "100", "/cancel")
	if got := env.messenger.lastFor("100"); got != messages.NoJobRunning {
		t.Fatalf("expected no-job notice, got %q", got)
	}

	if _, err := env.control.StartJob("100", model.Credentials{LoginID: "010-1111-1111"}, completeRequest()); err != nil {
		t.Fatalf("start job: %v", err)
	}
	env.sessions.Do("100", func(s *model.Session) {
		s.State = model.StateLocked
		s.Credentials.LoginID = "010-1111-1111"
	})

	env.engine.HandleText(context.Background(), "100", "/cancel")
	if got := env.messenger.lastFor("100"); got != messages.ReserveFinished {
		t.Fatalf("expected finished notice, got %q", got)
	}
	if got := env.messenger.lastFor("900"); got != "The reservation job of 010-1111-1111 has been stopped." {
		t.Fatalf("unexpected subscriber notice %q", got)
	}
	if st := env.state("100"); st != model.StateIdle {
		t.Fatalf("expected idle session, got state %d", st)
	}
	if jobs := env.control.ListActive(); len(jobs) != 0 {
		t.Fatalf("expected empty registry, got %d job(s)", len(jobs))
	}
}

func TestAdminCommandsAreGated(t *testing.T) {
	env := newTestEnv(Config{AdminChatID: "9"}, defaultAllow())

	for _, cmd := range []string{"/cancelall", "/allusers", "/broadcast hello"} {
		env.engine.HandleText(context.Background(), "100", cmd)
		if got := env.messenger.lastFor("100"); got != messages.NotAuthorized {
			t.Fatalf("%s: expected authorization refusal, got %q", cmd, got)
		}
	}

	if _, err := env.subs.Add(context.Background(), "900"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	env.engine.HandleText(context.Background(), "9", "/broadcast maintenance at noon")
	if got := env.messenger.lastFor("900"); got != "maintenance at noon" {
		t.Fatalf("unexpected broadcast %q", got)
	}
}

func TestCancelAllNotifiesOwners(t *testing.T) {
	env := newTestEnv(Config{AdminChatID: "9"}, defaultAllow())

	if _, err := env.control.StartJob("100", model.Credentials{LoginID: "010-1111-1111"}, completeRequest()); err != nil {
		t.Fatalf("start job: %v", err)
	}
	env.sessions.Do("100", func(s *model.Session) { s.State = model.StateLocked })

	env.engine.HandleText(context.Background(), "9", "/cancelall")
	if got := env.messenger.lastFor("100"); got != messages.CancelledByAdmin {
		t.Fatalf("expected admin-cancel notice, got %q", got)
	}
	if got := env.messenger.lastFor("9"); !strings.HasPrefix(got, "Stopped 1 running job(s).") {
		t.Fatalf("unexpected admin summary %q", got)
	}
	if st := env.state("100"); st != model.StateIdle {
		t.Fatalf("expected idle session, got state %d", st)
	}
}

func TestSubscribeIsIdempotent(t *testing.T) {
	env := newTestEnv(Config{}, defaultAllow())

	env.engine.HandleText(context.Background(), "100", "/subscribe")
	if got := env.messenger.lastFor("100"); got != messages.SubscribeDone {
		t.Fatalf("expected subscribe ack, got %q", got)
	}
	env.engine.HandleText(context.Background(), "100", "/subscribe")
	if got := env.messenger.lastFor("100"); got != messages.SubscribeAlready {
		t.Fatalf("expected already-subscribed notice, got %q", got)
	}
}

func TestIdleAndUnknownInput(t *testing.T) {
	env := newTestEnv(Config{}, defaultAllow())

	env.engine.HandleText(context.Background(), "100", "hello")
	if got := env.messenger.lastFor("100"); got != messages.NoProcess {
		t.Fatalf("expected no-process notice, got %q", got)
	}
	env.engine.HandleText(context.Background(), "100", "/bogus")
	if got := env.messenger.lastFor("100"); got != messages.UnknownCommand {
		t.Fatalf("expected unknown-command notice, got %q", got)
	}
}

func TestAdminBypassUsesOperatorCredentials(t *testing.T) {
	hash, err := utils.HashSecret("letmein", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	env := newTestEnv(Config{
		AdminSecretHash:     hash,
		OperatorLoginID:     "010-3333-3333",
		OperatorLoginSecret: "op-secret",
	}, defaultAllow())

	env.drive(t, "100", []struct{ in, want string }{
		{"/start", messages.Start},
		{"letmein", messages.LoginSuccess},
	})

	var creds model.Credentials
	env.sessions.Do("100", func(s *model.Session) { creds = s.Credentials })
	if creds.LoginID != "010-3333-3333" || creds.LoginSecret != "op-secret" {
		t.Fatalf("expected operator credentials, got %+v", creds)
	}
	if st := env.state("100"); st != model.StateAwaitingDate {
		t.Fatalf("expected date prompt state, got %d", st)
	}
}

func TestStartConfirmRejection(t *testing.T) {
	env := newTestEnv(Config{}, defaultAllow())

	env.drive(t, "100", []struct{ in, want string }{
		{"/start", messages.Start},
		{"whatever", messages.ReserveInitCancelled},
	})
	if st := env.state("100"); st != model.StateIdle {
		t.Fatalf("expected idle after rejection, got state %d", st)
	}
}

func TestValidHHMM(t *testing.T) {
	valid := []string{"0000", "0930", "2359"}
	invalid := []string{"", "930", "09300", "2400", "0960", "ab00"}
	for _, s := range valid {
		if !validHHMM(s) {
			t.Fatalf("expected %q to be valid", s)
		}
	}
	for _, s := range invalid {
		if validHHMM(s) {
			t.Fatalf("expected %q to be invalid", s)
		}
	}
}

func completeRequest() model.ReservationRequest {
	return model.ReservationRequest{
		DepartureDate: "20991231",
		Origin:        "Seoul",
		Destination:   "Busan",
		EarliestTime:  "0900",
		LatestTime:    "1200",
		TrainClass:    model.TrainClassAny,
		SeatPref:      model.SeatGeneralFirst,
	}
}
