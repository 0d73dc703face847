package state

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crewdesk/internal/api"
)

const taskReply = `{"action":"execute_task","holding_message":"Working...","task_for_team":"Build X"}`

func TestComputeRenderStateIsPure(t *testing.T) {
	messages := []api.Message{
		{Role: api.RoleUser, Content: "hi"},
		{Role: api.RoleAssistant, Content: "hello"},
		{Role: api.RoleUser, Content: "build it"},
		{Role: api.RoleAssistant, Content: taskReply},
	}
	first := ComputeRenderState(messages)
	second := ComputeRenderState(messages)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("render state not pure (-first +second):\n%s", diff)
	}
}

func TestComputeRenderStateHidesRunningTask(t *testing.T) {
	messages := []api.Message{
		{Role: api.RoleUser, Content: "build it"},
		{Role: api.RoleAssistant, Content: taskReply},
	}
	rs := ComputeRenderState(messages)
	assert.True(t, rs.IsPolling)
	assert.Equal(t, "Working...", rs.HoldingMessage)
	require.Len(t, rs.DisplayMessages, 1)
	assert.Equal(t, api.RoleUser, rs.DisplayMessages[0].Role)
}

func TestComputeRenderStateFinishedTaskIsNotPolling(t *testing.T) {
	messages := []api.Message{
		{Role: api.RoleUser, Content: "build it"},
		{Role: api.RoleAssistant, Content: "Done, the landing page is live."},
	}
	rs := ComputeRenderState(messages)
	assert.False(t, rs.IsPolling)
	assert.Empty(t, rs.HoldingMessage)
	assert.Len(t, rs.DisplayMessages, 2)
}

func TestSetOptimisticMessage(t *testing.T) {
	s := NewStore(nil)
	s.SetOptimisticMessage("hi")

	st := s.State()
	require.Len(t, st.Messages, 1)
	assert.Equal(t, api.RoleUser, st.Messages[0].Role)
	assert.Equal(t, "hi", st.Messages[0].Content)
	assert.Equal(t, StatusLoading, st.Status)
	assert.Empty(t, st.Err)
}

func TestSetActiveTeamDiscardsScopedCaches(t *testing.T) {
	s := NewStore(nil)
	s.InitializeWithData([]api.Team{{ID: "t1", Name: "Alpha"}}, nil)
	s.SetTeamData([]api.ChatSummary{{ID: "c1"}}, []api.Agent{{ID: "a1"}})
	chatID := "c1"
	s.UpdateChatState(ChatUpdate{ChatID: &chatID, Messages: []api.Message{{Role: api.RoleUser, Content: "hi"}}})

	before := s.Epoch()
	s.SetActiveTeam(api.Team{ID: "t2", Name: "Beta"})

	st := s.State()
	assert.Empty(t, st.Messages)
	assert.Empty(t, st.ChatHistory)
	assert.Empty(t, st.Agents)
	assert.Equal(t, "", st.CurrentChatID)
	assert.Equal(t, StatusLoading, st.Status)
	assert.Equal(t, "t2", st.ActiveTeam.ID)
	assert.NotEqual(t, before, s.Epoch())
}

func TestUpdateChatStateDerivesPolling(t *testing.T) {
	s := NewStore(nil)
	s.InitializeWithData([]api.Team{{ID: "t1"}}, nil)
	chatID := "c1"
	s.UpdateChatState(ChatUpdate{
		ChatID: &chatID,
		Messages: []api.Message{
			{Role: api.RoleUser, Content: "go"},
			{Role: api.RoleAssistant, Content: taskReply},
		},
	})
	st := s.State()
	assert.Equal(t, StatusPolling, st.Status)
	assert.Equal(t, "c1", st.CurrentChatID)
	assert.True(t, st.Render.IsPolling)
}

func TestUpdateChatStateExplicitStatusWins(t *testing.T) {
	s := NewStore(nil)
	s.InitializeWithData([]api.Team{{ID: "t1"}}, nil)
	chatID := "c1"
	idle := StatusIdle
	s.UpdateChatState(ChatUpdate{
		ChatID:   &chatID,
		Messages: []api.Message{{Role: api.RoleAssistant, Content: taskReply}},
		Status:   &idle,
	})
	assert.Equal(t, StatusIdle, s.State().Status)
}

func TestPollingInvariantRequiresScope(t *testing.T) {
	s := NewStore(nil)
	// no active team, no chat id: derived polling must collapse to idle
	s.UpdateChatState(ChatUpdate{
		Messages: []api.Message{{Role: api.RoleAssistant, Content: taskReply}},
	})
	assert.Equal(t, StatusIdle, s.State().Status)
}

func TestInitializeWithDataNavigates(t *testing.T) {
	s := NewStore(nil)
	assert.Equal(t, ViewWelcome, s.State().View)

	s.InitializeWithData([]api.Team{{ID: "t1"}, {ID: "t2"}}, []api.DesignSession{{ID: "ds1"}})
	st := s.State()
	assert.Equal(t, ViewChat, st.View)
	require.NotNil(t, st.ActiveTeam)
	assert.Equal(t, "t1", st.ActiveTeam.ID)
	assert.Len(t, st.DesignSessions, 1)
}

func TestInitializeWithDataNoTeamsStaysWelcome(t *testing.T) {
	s := NewStore(nil)
	s.InitializeWithData(nil, nil)
	st := s.State()
	assert.Equal(t, ViewWelcome, st.View)
	assert.Nil(t, st.ActiveTeam)
}

func TestErrorOverwrittenByNextAction(t *testing.T) {
	s := NewStore(nil)
	s.SetError("boom")
	st := s.State()
	assert.Equal(t, StatusError, st.Status)
	assert.Equal(t, "boom", st.Err)

	s.SetOptimisticMessage("retry")
	st = s.State()
	assert.Equal(t, StatusLoading, st.Status)
	assert.Empty(t, st.Err)
}

func TestErrorPreservesLoadedState(t *testing.T) {
	s := NewStore(nil)
	s.InitializeWithData([]api.Team{{ID: "t1"}}, nil)
	s.SetError("network down")
	st := s.State()
	assert.Len(t, st.Teams, 1)
	require.NotNil(t, st.ActiveTeam)
}

func TestStartNewChatKeepsTeamCaches(t *testing.T) {
	s := NewStore(nil)
	s.InitializeWithData([]api.Team{{ID: "t1"}}, nil)
	s.SetTeamData([]api.ChatSummary{{ID: "c1"}}, []api.Agent{{ID: "a1"}})
	chatID := "c1"
	s.UpdateChatState(ChatUpdate{ChatID: &chatID, Messages: []api.Message{{Role: api.RoleUser, Content: "hi"}}})

	s.StartNewChat()
	st := s.State()
	assert.Empty(t, st.Messages)
	assert.Equal(t, "", st.CurrentChatID)
	assert.Len(t, st.ChatHistory, 1)
	assert.Len(t, st.Agents, 1)
	assert.Equal(t, StatusIdle, st.Status)
}

func TestSubscribersNotifiedSynchronously(t *testing.T) {
	s := NewStore(nil)
	var seen []Status
	id := s.Subscribe(func(st AppState) {
		seen = append(seen, st.Status)
	})
	s.SetOptimisticMessage("hi")
	s.SetError("boom")
	require.Equal(t, []Status{StatusLoading, StatusError}, seen)

	s.Unsubscribe(id)
	s.StartNewChat()
	assert.Len(t, seen, 2)
}

func TestStateReturnsCopies(t *testing.T) {
	s := NewStore(nil)
	s.InitializeWithData([]api.Team{{ID: "t1", Name: "Alpha"}}, nil)

	st := s.State()
	st.Teams[0].Name = "mutated"
	st.ActiveTeam.Name = "mutated"

	fresh := s.State()
	assert.Equal(t, "Alpha", fresh.Teams[0].Name)
	assert.Equal(t, "Alpha", fresh.ActiveTeam.Name)
}
