package api

import "encoding/json"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one conversation entry as returned by the server. Ordering is
// the server's; the client never re-sorts.
type Message struct {
	Role           string         `json:"role"`
	Content        string         `json:"content"`
	AgentUsed      string         `json:"agentUsed,omitempty"`
	StructuredData map[string]any `json:"structuredData,omitempty"`
}

// UnmarshalJSON tolerates structured content payloads by re-encoding them to
// their JSON text, so downstream classification always sees a string.
func (m *Message) UnmarshalJSON(data []byte) error {
	var aux struct {
		Role           string          `json:"role"`
		Content        json.RawMessage `json:"content"`
		AgentUsed      string          `json:"agentUsed"`
		StructuredData map[string]any  `json:"structuredData"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	m.Role = aux.Role
	m.AgentUsed = aux.AgentUsed
	m.StructuredData = aux.StructuredData
	if len(aux.Content) == 0 {
		m.Content = ""
		return nil
	}
	var text string
	if err := json.Unmarshal(aux.Content, &text); err == nil {
		m.Content = text
	} else {
		m.Content = string(aux.Content)
	}
	return nil
}

type Team struct {
	ID      string `json:"teamId"`
	Name    string `json:"name"`
	Mission string `json:"mission"`
}

type Agent struct {
	ID   string `json:"agentId"`
	Name string `json:"name"`
	Role string `json:"role"`
}

type ChatSummary struct {
	ID        string `json:"chatId"`
	Title     string `json:"title"`
	UpdatedAt string `json:"updatedAt"`
}

type DesignSession struct {
	ID   string `json:"designSessionId"`
	Name string `json:"name"`
}

type ChatPostRequest struct {
	Message string `json:"message"`
	ChatID  string `json:"chatId,omitempty"`
}

// ChatPostResult covers both completion modes of POST /teams/{id}/chats:
// a synchronous 200 carries the full message list, a 202 carries only the
// chat id and means the turn was dispatched for async processing.
type ChatPostResult struct {
	Accepted bool      `json:"-"`
	Success  bool      `json:"success"`
	ChatID   string    `json:"chatId"`
	Messages []Message `json:"messages"`
}

type ChatResult struct {
	Messages []Message `json:"messages"`
}

type BuilderChatRequest struct {
	DesignSessionID string    `json:"designSessionId,omitempty"`
	Messages        []Message `json:"messages"`
}

// ResponseTypeFinalSubmission marks a builder reply whose payload is ready to
// be materialized into a real team.
const ResponseTypeFinalSubmission = "FINAL_SUBMISSION"

type BuilderChatResult struct {
	ResponseType      string          `json:"response_type"`
	SubmissionPayload json.RawMessage `json:"submission_payload"`
	DesignSessionID   string          `json:"designSessionId"`
	Name              string          `json:"name"`
	Messages          []Message       `json:"messages"`
}

type CreateTeamResult struct {
	Success bool   `json:"success"`
	TeamID  string `json:"teamId"`
	Name    string `json:"name"`
	Mission string `json:"mission"`
}
