// Package orchestrate turns UI intents into request/response/poll sequences
// against the backend and translates every outcome into store mutations.
// Intent handlers are fire-and-forget: they never return errors to the UI,
// they surface failures through the store's error field.
package orchestrate

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"crewdesk/internal/api"
	"crewdesk/internal/state"
)

type Orchestrator struct {
	api    *api.Client
	store  *state.Store
	poller *Poller
	log    *zap.Logger
}

func New(client *api.Client, store *state.Store, poller *Poller, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{api: client, store: store, poller: poller, log: log}
}

// Bootstrap seeds the store after startup: teams and design sessions are
// fetched together, then the first team's scoped data is loaded.
func (o *Orchestrator) Bootstrap(ctx context.Context) {
	o.store.SetStatus(state.StatusLoading)

	var teams []api.Team
	var sessions []api.DesignSession
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		teams, err = o.api.Teams(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		sessions, err = o.api.BuilderSessions(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		o.store.SetError(err.Error())
		return
	}

	o.store.InitializeWithData(teams, sessions)
	if team := o.store.State().ActiveTeam; team != nil {
		o.loadTeamData(ctx, *team)
	}
}

// SendTeamMessage runs the optimistic-append → POST → finalize-or-poll
// sequence for the active team's chat.
func (o *Orchestrator) SendTeamMessage(ctx context.Context, text string) {
	st := o.store.State()
	if st.ActiveTeam == nil {
		o.store.SetError("no active team selected")
		return
	}
	team := *st.ActiveTeam

	o.store.SetOptimisticMessage(text)
	epoch := o.store.Epoch()

	res, err := o.api.PostChat(ctx, team.ID, api.ChatPostRequest{Message: text, ChatID: st.CurrentChatID})
	if o.store.Epoch() != epoch {
		// Scope changed mid-flight; neither the result nor its failure
		// belongs to the current conversation.
		o.log.Debug("dropping stale chat response", zap.String("team_id", team.ID), zap.Error(err))
		return
	}
	if err != nil {
		o.store.SetError(err.Error())
		return
	}

	if res.Accepted {
		// Dispatched for async processing: pick up whatever the server has
		// so far, then poll until the delegated task settles.
		chat, err := o.api.Chat(ctx, res.ChatID)
		if o.store.Epoch() != epoch {
			return
		}
		if err != nil {
			o.store.SetError(err.Error())
			return
		}
		polling := state.StatusPolling
		o.store.UpdateChatState(state.ChatUpdate{ChatID: &res.ChatID, Messages: chat.Messages, Status: &polling})
		o.poller.Start(res.ChatID, team.ID)
		return
	}

	update := state.ChatUpdate{ChatID: &res.ChatID, Messages: res.Messages}
	if st.CurrentChatID == "" && res.ChatID != "" {
		// First exchange created the chat server-side; backfill the history
		// list. A failure here is not worth failing the send over.
		if history, err := o.api.TeamChats(ctx, team.ID); err == nil {
			update.ChatHistory = history
		}
	}
	if o.store.Epoch() != epoch {
		return
	}
	o.store.UpdateChatState(update)
	o.maybePoll()
}

// SendBuilderMessage advances a design session. The session only persists
// server-side through this payload, so the full conversation travels with
// every turn. A FINAL_SUBMISSION reply materializes the session into a real
// team and lands the user in its chat.
func (o *Orchestrator) SendBuilderMessage(ctx context.Context, text string) {
	st := o.store.State()
	o.store.SetOptimisticMessage(text)
	epoch := o.store.Epoch()

	req := api.BuilderChatRequest{Messages: o.store.State().Messages}
	if st.ActiveDesignSession != nil {
		req.DesignSessionID = st.ActiveDesignSession.ID
	}
	res, err := o.api.BuilderChat(ctx, req)
	if o.store.Epoch() != epoch {
		return
	}
	if err != nil {
		o.store.SetError(err.Error())
		return
	}

	if res.ResponseType == api.ResponseTypeFinalSubmission {
		created, err := o.api.CreateTeam(ctx, res.SubmissionPayload, res.DesignSessionID)
		if err != nil {
			o.store.SetError(err.Error())
			return
		}
		if !created.Success {
			o.store.SetError("team creation rejected by server")
			return
		}
		team := api.Team{ID: created.TeamID, Name: created.Name, Mission: created.Mission}
		o.log.Info("design session promoted to team", zap.String("team_id", team.ID), zap.String("session_id", res.DesignSessionID))
		o.poller.Stop()
		o.store.AddTeam(team)
		o.store.SetActiveTeam(team)
		o.store.SetView(state.ViewChat)
		o.loadTeamData(ctx, team)
		return
	}

	sess := api.DesignSession{ID: res.DesignSessionID, Name: res.Name}
	o.store.SetDesignSession(sess, res.Messages)
}

// SwitchTeam cancels any polling, refocuses the store, and fetches the
// team's chat history and agents concurrently into a single update.
func (o *Orchestrator) SwitchTeam(ctx context.Context, team api.Team) {
	o.poller.Stop()
	o.store.SetActiveTeam(team)
	o.loadTeamData(ctx, team)
}

// StartTeamBuild requests a fresh design session and moves to the builder.
func (o *Orchestrator) StartTeamBuild(ctx context.Context) {
	o.poller.Stop()
	o.store.SetStatus(state.StatusLoading)

	res, err := o.api.BuilderChat(ctx, api.BuilderChatRequest{})
	if err != nil {
		o.store.SetError(err.Error())
		return
	}
	sess := api.DesignSession{ID: res.DesignSessionID, Name: res.Name}
	o.store.SetDesignSession(sess, res.Messages)
	o.store.SetView(state.ViewTeamBuilder)
}

// NewChat clears the conversation for a fresh unsaved chat.
func (o *Orchestrator) NewChat() {
	o.poller.Stop()
	o.store.StartNewChat()
}

// LoadChat fetches an existing chat by id and resumes polling when its
// newest message is still a delegated task.
func (o *Orchestrator) LoadChat(ctx context.Context, chatID string) {
	o.poller.Stop()
	o.store.SetStatus(state.StatusLoading)
	epoch := o.store.Epoch()

	chat, err := o.api.Chat(ctx, chatID)
	if o.store.Epoch() != epoch {
		return
	}
	if err != nil {
		o.store.SetError(err.Error())
		return
	}
	o.store.UpdateChatState(state.ChatUpdate{ChatID: &chatID, Messages: chat.Messages})
	o.maybePoll()
}

// loadTeamData fetches history and agents concurrently and installs them as
// one notification, dropping the result if the scope changed mid-flight.
func (o *Orchestrator) loadTeamData(ctx context.Context, team api.Team) {
	epoch := o.store.Epoch()

	var history []api.ChatSummary
	var agents []api.Agent
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		history, err = o.api.TeamChats(gctx, team.ID)
		return err
	})
	g.Go(func() error {
		var err error
		agents, err = o.api.TeamAgents(gctx, team.ID)
		return err
	})
	err := g.Wait()
	if o.store.Epoch() != epoch {
		o.log.Debug("dropping stale team data", zap.String("team_id", team.ID), zap.Error(err))
		return
	}
	if err != nil {
		o.store.SetError(err.Error())
		return
	}
	o.store.SetTeamData(history, agents)
}

// maybePoll starts the poll loop when the store settled into polling status.
func (o *Orchestrator) maybePoll() {
	st := o.store.State()
	if st.Status == state.StatusPolling && st.ActiveTeam != nil && st.CurrentChatID != "" {
		o.poller.Start(st.CurrentChatID, st.ActiveTeam.ID)
	}
}
