package responder

import "testing"

func TestParseCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input  string
		want   Command
		wantOK bool
	}{
		{"/models", Command{Kind: CommandModels}, true},
		{"/MODELS please", Command{Kind: CommandModels}, true},
		{"/model GPT-X", Command{Kind: CommandModel, Arg: "GPT-X"}, true},
		{"  /model   llama3:8b  ", Command{Kind: CommandModel, Arg: "llama3:8b"}, true},
		{"/model", Command{Kind: CommandModel}, true},
		{"/clear", Command{Kind: CommandClear}, true},
		{"/status", Command{Kind: CommandStatus}, true},
		{"/modelx", Command{}, false},
		{"hello", Command{}, false},
		{"what is 4/2", Command{}, false},
	}

	for _, tt := range tests {
		got, ok := ParseCommand(tt.input)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("ParseCommand(%q) = %+v, %v; want %+v, %v", tt.input, got, ok, tt.want, tt.wantOK)
		}
	}
}
