package chat

import (
	"fmt"
	"strings"

	"github.com/ashureev/chatwidget/internal/backend"
)

// Visible notices. Warnings start with ⚠️ or ❌ like the rest of the widget.
const (
	msgBackendUnreachable = "⚠️ Cannot connect to the model backend. Using fallback responses."
	msgBackendMalformed   = "⚠️ The model backend sent an unexpected response. Using fallback responses."
	msgServerDown         = "⚠️ Backend server not running. Using fallback responses."
	msgRuntimeMissing     = "⚠️ Ollama not detected. Using fallback responses."
	msgModelsError        = "❌ Error retrieving models list."
	msgNoModels           = "❌ No models found. Make sure Ollama is running and has models installed."
	msgModelUsage         = "❌ Usage: /model <name>"
	msgModelSwitchError   = "❌ Error switching model"
	msgClearFailed        = "⚠️ Could not clear the conversation on the server. Your messages were kept."

	// ClearedNotice is shown in place of the log after a successful clear.
	ClearedNotice = "Conversation cleared! How can I help you today?"
)

func connectedNotice(model string) string {
	return fmt.Sprintf("🤖 Connected to Ollama! Using model: %s", model)
}

func modelSwitchedNotice(model string) string {
	return fmt.Sprintf("✅ Switched to model: %s", model)
}

func modelSwitchFailedNotice(reason string) string {
	return fmt.Sprintf("❌ Failed to switch model: %s", reason)
}

func modelsNotice(models []string) string {
	var b strings.Builder
	b.WriteString("📦 Available models:\n")
	for i, m := range models {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("• ")
		b.WriteString(m)
	}
	b.WriteString("\n\nUse /model <name> to switch models.")
	return b.String()
}

// failureNotice describes a failed chat call for the warning turn.
func failureNotice(err error) string {
	if se, ok := backend.AsServiceError(err); ok && se.Message != "" {
		return "⚠️ " + se.Message
	}
	if backend.IsMalformed(err) {
		return msgBackendMalformed
	}
	return msgBackendUnreachable
}
