package state

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"crewdesk/internal/api"
)

// Store owns one AppState. Mutations apply under the lock and notify every
// subscriber with a snapshot after the lock is released. Subscribers run on
// the mutating goroutine and must return quickly; they receive copies, so
// mutating a delivered snapshot never leaks back into the store.
type Store struct {
	mu    sync.Mutex
	st    AppState
	subs  map[string]func(AppState)
	order []string
	epoch uint64
	log   *zap.Logger
}

func NewStore(log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		st: AppState{
			View:   ViewWelcome,
			Status: StatusIdle,
		},
		subs: map[string]func(AppState){},
		log:  log,
	}
}

// Subscribe registers fn for every subsequent mutation and returns an id for
// Unsubscribe. Notification order follows subscription order.
func (s *Store) Subscribe(fn func(AppState)) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	s.subs[id] = fn
	s.order = append(s.order, id)
	return id
}

func (s *Store) Unsubscribe(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// State returns a snapshot copy of the current state.
func (s *Store) State() AppState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.clone()
}

// Epoch identifies the current conversation scope. It advances whenever the
// scope changes (team switch, new chat, design session swap); in-flight work
// captures it before suspending and drops its result when it no longer
// matches.
func (s *Store) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

func (s *Store) apply(mutate func(st *AppState)) {
	s.mu.Lock()
	mutate(&s.st)
	snapshot := s.st.clone()
	fns := make([]func(AppState), 0, len(s.order))
	for _, id := range s.order {
		if fn, ok := s.subs[id]; ok {
			fns = append(fns, fn)
		}
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(snapshot)
	}
}

// SetOptimisticMessage appends the user's message before any network round
// trip so input is visible immediately. There is no rollback on failure; the
// error surface reports it instead.
func (s *Store) SetOptimisticMessage(text string) {
	s.apply(func(st *AppState) {
		st.Messages = append(st.Messages, api.Message{Role: api.RoleUser, Content: text})
		st.Render = ComputeRenderState(st.Messages)
		st.Status = StatusLoading
		st.Err = ""
	})
}

// ChatUpdate describes a partial chat refresh. Nil fields are left alone.
// When Status is nil the store recomputes it: polling while the newest
// message is a delegated task still in flight, idle otherwise.
type ChatUpdate struct {
	ChatID      *string
	Messages    []api.Message
	ChatHistory []api.ChatSummary
	Status      *Status
}

func (s *Store) UpdateChatState(u ChatUpdate) {
	s.apply(func(st *AppState) {
		if u.ChatID != nil {
			st.CurrentChatID = *u.ChatID
		}
		if u.Messages != nil {
			st.Messages = append([]api.Message(nil), u.Messages...)
			st.Render = ComputeRenderState(st.Messages)
		}
		if u.ChatHistory != nil {
			st.ChatHistory = append([]api.ChatSummary(nil), u.ChatHistory...)
		}
		st.Err = ""
		switch {
		case u.Status != nil:
			st.Status = *u.Status
		case st.Render.IsPolling:
			st.Status = StatusPolling
		default:
			st.Status = StatusIdle
		}
		// polling requires a saved chat in a team scope
		if st.Status == StatusPolling && (st.CurrentChatID == "" || st.ActiveTeam == nil) {
			st.Status = StatusIdle
		}
	})
}

// SetActiveTeam switches focus and discards everything scoped to the
// previous team. Status moves to loading so dependent data gets refetched.
func (s *Store) SetActiveTeam(team api.Team) {
	s.apply(func(st *AppState) {
		s.epoch++
		st.ActiveTeam = &team
		st.CurrentChatID = ""
		st.Messages = nil
		st.ChatHistory = nil
		st.Agents = nil
		st.Render = ComputeRenderState(nil)
		st.Status = StatusLoading
		st.Err = ""
	})
	s.log.Debug("active team switched", zap.String("team_id", team.ID))
}

// StartNewChat clears the conversation without touching team-scoped caches.
func (s *Store) StartNewChat() {
	s.apply(func(st *AppState) {
		s.epoch++
		st.CurrentChatID = ""
		st.Messages = nil
		st.Render = ComputeRenderState(nil)
		st.Status = StatusIdle
		st.Err = ""
	})
}

// InitializeWithData seeds the caches once after startup. The first team
// becomes active when none is, and the view leaves the welcome screen as soon
// as any team exists.
func (s *Store) InitializeWithData(teams []api.Team, sessions []api.DesignSession) {
	s.apply(func(st *AppState) {
		st.Teams = append([]api.Team(nil), teams...)
		st.DesignSessions = append([]api.DesignSession(nil), sessions...)
		if st.ActiveTeam == nil && len(teams) > 0 {
			team := teams[0]
			st.ActiveTeam = &team
		}
		if st.View == ViewWelcome && len(teams) > 0 {
			st.View = ViewChat
		}
		st.Status = StatusIdle
		st.Err = ""
	})
}

// SetTeamData installs the freshly fetched history and agents for the active
// team as one notification.
func (s *Store) SetTeamData(history []api.ChatSummary, agents []api.Agent) {
	s.apply(func(st *AppState) {
		st.ChatHistory = append([]api.ChatSummary(nil), history...)
		st.Agents = append([]api.Agent(nil), agents...)
		st.Status = StatusIdle
		st.Err = ""
	})
}

// SetDesignSession focuses a builder session and replaces the conversation
// with the session's messages.
func (s *Store) SetDesignSession(sess api.DesignSession, messages []api.Message) {
	s.apply(func(st *AppState) {
		s.epoch++
		st.ActiveDesignSession = &sess
		st.CurrentChatID = ""
		st.Messages = append([]api.Message(nil), messages...)
		st.Render = ComputeRenderState(st.Messages)
		st.Status = StatusIdle
		st.Err = ""
	})
}

func (s *Store) AddTeam(team api.Team) {
	s.apply(func(st *AppState) {
		st.Teams = append(st.Teams, team)
	})
}

func (s *Store) SetView(v View) {
	s.apply(func(st *AppState) {
		st.View = v
	})
}

func (s *Store) SetStatus(status Status) {
	s.apply(func(st *AppState) {
		st.Status = status
		if status != StatusError {
			st.Err = ""
		}
	})
}

// SetError surfaces a failure while preserving everything already loaded.
func (s *Store) SetError(msg string) {
	s.apply(func(st *AppState) {
		st.Status = StatusError
		st.Err = msg
	})
	s.log.Warn("error surfaced", zap.String("error", msg))
}
