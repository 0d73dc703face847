package state

import (
	"crewdesk/internal/api"
	"crewdesk/internal/reply"
)

// ComputeRenderState derives the display projection of messages. Assistant
// messages carrying a delegated-task marker are hidden while the task runs;
// the newest such message flips the polling flag and contributes its holding
// message. Pure: same input, same output.
func ComputeRenderState(messages []api.Message) RenderState {
	out := RenderState{DisplayMessages: make([]api.Message, 0, len(messages))}
	for _, msg := range messages {
		if msg.Role == api.RoleAssistant {
			if classified := reply.Classify(msg.Content); classified.Kind == reply.TaskInProgress {
				out.HoldingMessage = classified.HoldingMessage
				continue
			}
		}
		out.DisplayMessages = append(out.DisplayMessages, msg)
	}
	if len(messages) > 0 {
		last := messages[len(messages)-1]
		if last.Role == api.RoleAssistant && reply.Classify(last.Content).Kind == reply.TaskInProgress {
			out.IsPolling = true
		}
	}
	if !out.IsPolling {
		out.HoldingMessage = ""
	}
	return out
}
