// Package reply classifies assistant message content into the handful of
// structured shapes the backend agents emit. Classification is a pure function
// of the content string: the store re-derives it on every render pass, so the
// same input must always produce the same result.
package reply

import (
	"encoding/json"
	"strings"
)

type Kind int

const (
	Unclassifiable Kind = iota
	Conversational
	TaskInProgress
	ActionOffer
)

func (k Kind) String() string {
	switch k {
	case Conversational:
		return "conversational"
	case TaskInProgress:
		return "task_in_progress"
	case ActionOffer:
		return "action_offer"
	default:
		return "unclassifiable"
	}
}

// Action is one choice offered by an action-offer reply. Ids are passed
// through verbatim; the client does not validate them.
type Action struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	IsPrimary bool   `json:"isPrimary,omitempty"`
}

// Classified is the tagged result of Classify. Only the fields for the
// matching Kind are populated.
type Classified struct {
	Kind           Kind
	Text           string
	HoldingMessage string
	DelegatedTask  string
	Actions        []Action
}

const (
	actionExecuteTask     = "execute_task"
	actionRedirectBuilder = "redirect_to_team_builder"
)

type structuredReply struct {
	Action         string   `json:"action"`
	HoldingMessage string   `json:"holding_message"`
	TaskForTeam    string   `json:"task_for_team"`
	Text           string   `json:"text"`
	Message        string   `json:"message"`
	Actions        []Action `json:"actions"`
}

// Classify inspects assistant content and returns its structured
// interpretation. Plain prose and unrecognized or malformed JSON degrade to
// Conversational so unknown server shapes render as ordinary text instead of
// erroring.
func Classify(content string) Classified {
	if strings.TrimSpace(content) == "" {
		return Classified{Kind: Unclassifiable, Text: content}
	}

	candidate := extractFencedJSON(content)

	var generic any
	if err := json.Unmarshal([]byte(candidate), &generic); err != nil {
		return Classified{Kind: Conversational, Text: content}
	}
	obj, ok := generic.(map[string]any)
	if !ok {
		return Classified{Kind: Conversational, Text: content}
	}

	var parsed structuredReply
	if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
		return Classified{Kind: Conversational, Text: content}
	}

	if parsed.Action == actionExecuteTask && parsed.HoldingMessage != "" && parsed.TaskForTeam != "" {
		return Classified{
			Kind:           TaskInProgress,
			HoldingMessage: parsed.HoldingMessage,
			DelegatedTask:  parsed.TaskForTeam,
		}
	}

	offerText := parsed.Text
	if offerText == "" {
		offerText = parsed.Message
	}
	_, actionsPresent := obj["actions"].([]any)
	if parsed.Action == actionRedirectBuilder || (offerText != "" && actionsPresent) {
		return Classified{
			Kind:    ActionOffer,
			Text:    offerText,
			Actions: parsed.Actions,
		}
	}

	// Valid JSON, unknown shape.
	return Classified{Kind: Conversational, Text: content}
}

// extractFencedJSON returns the contents of the first ```json (or bare ```)
// block in text, or text itself when no fence is present.
func extractFencedJSON(text string) string {
	patterns := []string{
		"```json\n",
		"```json\r\n",
		"```\n",
		"```\r\n",
	}
	for _, pattern := range patterns {
		if idx := strings.Index(text, pattern); idx != -1 {
			start := idx + len(pattern)
			if end := strings.Index(text[start:], "```"); end != -1 {
				return strings.TrimSpace(text[start : start+end])
			}
		}
	}
	return strings.TrimSpace(text)
}
