package responder

import (
	"strings"
)

// CommandKind identifies a slash command typed into the message box.
type CommandKind string

const (
	CommandModels CommandKind = "models"
	CommandModel  CommandKind = "model"
	CommandClear  CommandKind = "clear"
	CommandStatus CommandKind = "status"
)

// Command is a parsed slash command. Arg is only set for CommandModel.
type Command struct {
	Kind CommandKind
	Arg  string
}

// ParseCommand recognises the management commands. Matching is a
// case-insensitive prefix test on the trimmed input; the model name keeps
// the case it was typed in.
func ParseCommand(text string) (Command, bool) {
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)

	switch {
	case strings.HasPrefix(lower, "/models"):
		return Command{Kind: CommandModels}, true
	case lower == "/model":
		return Command{Kind: CommandModel}, true
	case strings.HasPrefix(lower, "/model "):
		return Command{Kind: CommandModel, Arg: strings.TrimSpace(trimmed[len("/model "):])}, true
	case strings.HasPrefix(lower, "/clear"):
		return Command{Kind: CommandClear}, true
	case strings.HasPrefix(lower, "/status"):
		return Command{Kind: CommandStatus}, true
	}
	return Command{}, false
}
