package orchestrate

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"crewdesk/internal/api"
	"crewdesk/internal/state"
)

const (
	taskMessage = `{"role":"assistant","content":{"action":"execute_task","holding_message":"Working...","task_for_team":"Build X"}}`
	doneMessage = `{"role":"assistant","content":"All done."}`
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func seededStore(teamID, chatID string) *state.Store {
	s := state.NewStore(nil)
	s.InitializeWithData([]api.Team{{ID: teamID, Name: "Alpha"}}, nil)
	polling := state.StatusPolling
	s.UpdateChatState(state.ChatUpdate{
		ChatID:   &chatID,
		Messages: []api.Message{{Role: api.RoleUser, Content: "go"}},
		Status:   &polling,
	})
	return s
}

func TestPollerFinishesWhenTaskCompletes(t *testing.T) {
	var gets atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("GET /chats/c1", func(w http.ResponseWriter, r *http.Request) {
		n := gets.Add(1)
		if n < 3 {
			fmt.Fprintf(w, `{"messages":[{"role":"user","content":"go"},%s]}`, taskMessage)
			return
		}
		fmt.Fprintf(w, `{"messages":[{"role":"user","content":"go"},%s]}`, doneMessage)
	})
	mux.HandleFunc("GET /teams/t1/chats", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[{"chatId":"c1","title":"go"}]`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := seededStore("t1", "c1")
	p := NewPoller(api.New(srv.URL, time.Second, nil), store, 20*time.Millisecond, nil)
	p.Start("c1", "t1")
	defer p.Stop()

	waitFor(t, 2*time.Second, func() bool {
		return store.State().Status == state.StatusIdle
	})

	st := store.State()
	if len(st.ChatHistory) != 1 || st.ChatHistory[0].ID != "c1" {
		t.Fatalf("expected refreshed chat history, got %+v", st.ChatHistory)
	}
	if st.CurrentChatID != "c1" {
		t.Fatalf("expected chat id c1, got %q", st.CurrentChatID)
	}
	if st.Render.IsPolling {
		t.Fatalf("render state still flags polling after completion")
	}
}

func TestPollerToleratesFailedTicks(t *testing.T) {
	var gets atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("GET /chats/c1", func(w http.ResponseWriter, r *http.Request) {
		if gets.Add(1) < 3 {
			http.Error(w, "flaky", http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, `{"messages":[%s]}`, doneMessage)
	})
	mux.HandleFunc("GET /teams/t1/chats", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[]`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := seededStore("t1", "c1")
	p := NewPoller(api.New(srv.URL, time.Second, nil), store, 20*time.Millisecond, nil)
	p.Start("c1", "t1")
	defer p.Stop()

	waitFor(t, 2*time.Second, func() bool {
		return store.State().Status == state.StatusIdle
	})
	if store.State().Err != "" {
		t.Fatalf("failed ticks must stay silent, got error %q", store.State().Err)
	}
}

func TestStartReplacesActiveLoop(t *testing.T) {
	var c1Gets, c2Gets atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("GET /chats/c1", func(w http.ResponseWriter, r *http.Request) {
		c1Gets.Add(1)
		fmt.Fprintf(w, `{"messages":[%s]}`, taskMessage)
	})
	mux.HandleFunc("GET /chats/c2", func(w http.ResponseWriter, r *http.Request) {
		c2Gets.Add(1)
		fmt.Fprintf(w, `{"messages":[%s]}`, taskMessage)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := seededStore("t1", "c2")
	p := NewPoller(api.New(srv.URL, time.Second, nil), store, 20*time.Millisecond, nil)
	p.Start("c1", "t1")
	p.Start("c2", "t1")
	defer p.Stop()

	waitFor(t, 2*time.Second, func() bool { return c2Gets.Load() >= 3 })

	// The c1 loop was cancelled before its first tick could land; at most one
	// tick may already have been in flight.
	if got := c1Gets.Load(); got > 1 {
		t.Fatalf("replaced loop kept ticking: %d requests for c1", got)
	}
}

func TestStopSilencesLoop(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /chats/c1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"messages":[%s]}`, taskMessage)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := seededStore("t1", "c1")
	var updates atomic.Int64
	store.Subscribe(func(state.AppState) { updates.Add(1) })

	p := NewPoller(api.New(srv.URL, time.Second, nil), store, 20*time.Millisecond, nil)
	p.Start("c1", "t1")
	waitFor(t, 2*time.Second, func() bool { return updates.Load() >= 2 })
	p.Stop()

	time.Sleep(60 * time.Millisecond) // let any in-flight tick drain
	settled := updates.Load()
	time.Sleep(100 * time.Millisecond)
	if updates.Load() != settled {
		t.Fatalf("store updated after Stop: %d -> %d", settled, updates.Load())
	}
}
