package main

import "testing"

func TestRootCommand_RegistersUserCommands(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"bootstrap-admin", "set-role", "delete-identity"} {
		if cmd, _, err := rootCmd.Find([]string{"users", name}); err != nil || cmd == nil || cmd.Name() != name {
			t.Fatalf("users %s command not registered: cmd=%v err=%v", name, cmd, err)
		}
	}
}

func TestCommandUsesStructuredLogging(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		want bool
	}{
		{name: "serve", args: []string{"serve"}, want: true},
		{name: "migrate", args: []string{"migrate"}, want: true},
		{name: "users bootstrap-admin", args: []string{"users", "bootstrap-admin"}, want: false},
		{name: "users set-role", args: []string{"users", "set-role"}, want: false},
		{name: "users delete-identity", args: []string{"users", "delete-identity"}, want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cmd, _, err := rootCmd.Find(tc.args)
			if err != nil {
				t.Fatalf("Find(%v) error = %v", tc.args, err)
			}
			if cmd == nil {
				t.Fatalf("Find(%v) returned nil command", tc.args)
			}

			if got := commandUsesStructuredLogging(cmd); got != tc.want {
				t.Fatalf("commandUsesStructuredLogging(%q) = %v, want %v", cmd.CommandPath(), got, tc.want)
			}
		})
	}
}
