package orchestrate

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"crewdesk/internal/api"
	"crewdesk/internal/reply"
	"crewdesk/internal/state"
)

// DefaultPollInterval bounds worst-case staleness while a delegated task
// runs. The backend has no push channel, so the client re-fetches the chat on
// a fixed cadence.
const DefaultPollInterval = 3 * time.Second

// Poller owns the lifecycle of "is a delegated task still running". At most
// one loop is active at any time; starting a new one cancels the previous
// loop, and a cancelled loop never touches the store again.
type Poller struct {
	api      *api.Client
	store    *state.Store
	interval time.Duration
	log      *zap.Logger

	mu      sync.Mutex
	current chan struct{}
}

func NewPoller(client *api.Client, store *state.Store, interval time.Duration, log *zap.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Poller{api: client, store: store, interval: interval, log: log}
}

// Start begins polling chatID within teamID, replacing any active loop.
func (p *Poller) Start(chatID, teamID string) {
	p.mu.Lock()
	if p.current != nil {
		close(p.current)
	}
	done := make(chan struct{})
	p.current = done
	p.mu.Unlock()

	p.log.Debug("poll loop started", zap.String("chat_id", chatID), zap.String("team_id", teamID))
	go p.run(chatID, teamID, done)
}

// Stop cancels the active loop, if any. Safe to call repeatedly.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != nil {
		close(p.current)
		p.current = nil
	}
}

func (p *Poller) run(chatID, teamID string, done chan struct{}) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if p.tick(chatID, teamID, done) {
				return
			}
		}
	}
}

// tick fetches the chat once and reports whether the loop should end.
// Transient fetch failures are skipped silently; the next tick retries.
func (p *Poller) tick(chatID, teamID string, done chan struct{}) bool {
	ctx, cancel := context.WithTimeout(context.Background(), p.interval)
	defer cancel()

	chat, err := p.api.Chat(ctx, chatID)
	if err != nil || len(chat.Messages) == 0 {
		if err != nil {
			p.log.Debug("poll tick skipped", zap.String("chat_id", chatID), zap.Error(err))
		}
		return false
	}

	last := chat.Messages[len(chat.Messages)-1]
	finished := last.Role == api.RoleAssistant && reply.Classify(last.Content).Kind != reply.TaskInProgress
	if !finished {
		polling := state.StatusPolling
		p.applyIfCurrent(done, false, state.ChatUpdate{Messages: chat.Messages, Status: &polling})
		return false
	}

	// Task done: refresh the history list and settle to idle in one update.
	history, err := p.api.TeamChats(ctx, teamID)
	if err != nil {
		p.log.Debug("history refresh failed on completion", zap.String("team_id", teamID), zap.Error(err))
	}
	idle := state.StatusIdle
	applied := p.applyIfCurrent(done, true, state.ChatUpdate{
		ChatID:      &chatID,
		Messages:    chat.Messages,
		ChatHistory: history,
		Status:      &idle,
	})
	if applied {
		p.log.Debug("poll loop finished", zap.String("chat_id", chatID))
	}
	return true
}

// applyIfCurrent performs the store update only while this loop is still the
// active one, so a tick racing a Stop or a restart cannot apply stale data.
func (p *Poller) applyIfCurrent(done chan struct{}, final bool, u state.ChatUpdate) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != done {
		return false
	}
	if final {
		p.current = nil
	}
	p.store.UpdateChatState(u)
	return true
}
