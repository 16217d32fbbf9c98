package repository

import (
	"context"
	"sync"
	"testing"

	"github.com/hyeonwoo/railbot/internal/model"
)

func TestSessionStoreCreatesLazily(t *testing.T) {
	st := NewSessionStore()

	st.Do("100", func(s *model.Session) {
		if s.ID != "100" || s.State != model.StateIdle {
			t.Fatalf("unexpected fresh session %+v", s)
		}
		if s.Credentials.LoginID != model.CredentialsNotSet {
			t.Fatalf("fresh session must carry placeholder credentials, got %q", s.Credentials.LoginID)
		}
		s.State = model.StateAwaitingDate
	})

	st.Do("100", func(s *model.Session) {
		if s.State != model.StateAwaitingDate {
			t.Fatal("state change was not retained")
		}
	})
}

func TestSessionStoreSerializesPerSession(t *testing.T) {
	st := NewSessionStore()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st.Do("100", func(s *model.Session) {
				// Counter smuggled through JobID; lost updates would show
				// up as a short count.
				s.JobID += "x"
			})
		}()
	}
	wg.Wait()

	st.Do("100", func(s *model.Session) {
		if len(s.JobID) != 100 {
			t.Fatalf("lost updates: got %d of 100", len(s.JobID))
		}
	})
}

func TestLoginIDs(t *testing.T) {
	st := NewSessionStore()
	st.Do("100", func(s *model.Session) { s.Credentials.LoginID = "010-1111-1111" })
	st.Do("200", func(s *model.Session) {})

	ids := st.LoginIDs()
	if len(ids) != 2 {
		t.Fatalf("expected 2 known users, got %d", len(ids))
	}
	seen := map[string]bool{}
	for _, id := range ids {
		seen[id] = true
	}
	if !seen["010-1111-1111"] || !seen[model.CredentialsNotSet] {
		t.Fatalf("unexpected id set %v", ids)
	}
}

func TestStaticAllowList(t *testing.T) {
	l := NewStaticAllowList(" 010-1111-1111 , 010-2222-2222,,")

	for id, want := range map[string]bool{
		"010-1111-1111": true,
		"010-2222-2222": true,
		"010-9999-9999": false,
		"":              false,
	} {
		got, err := l.Contains(context.Background(), id)
		if err != nil {
			t.Fatalf("%q: %v", id, err)
		}
		if got != want {
			t.Fatalf("%q: got %v, want %v", id, got, want)
		}
	}
}

func TestSubscriberStoreMemoryFallback(t *testing.T) {
	s := NewSubscriberStore(nil)
	ctx := context.Background()

	added, err := s.Add(ctx, "100")
	if err != nil || !added {
		t.Fatalf("first add: added=%v err=%v", added, err)
	}
	added, err = s.Add(ctx, "100")
	if err != nil || added {
		t.Fatalf("second add must be a no-op: added=%v err=%v", added, err)
	}

	ids, err := s.Members(ctx)
	if err != nil {
		t.Fatalf("members: %v", err)
	}
	if len(ids) != 1 || ids[0] != "100" {
		t.Fatalf("unexpected member set %v", ids)
	}
}
