package main

import (
	"strings"
	"testing"
)

func TestRunHelp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		args       []string
		wantStdout string
		wantStderr string
	}{
		{
			name:       "no args shows main usage",
			args:       nil,
			wantStdout: "Usage: md2pptx <command>",
		},
		{
			name:       "convert help",
			args:       []string{"convert"},
			wantStdout: "--template",
		},
		{
			name:       "doctor help",
			args:       []string{"doctor"},
			wantStdout: "mermaid",
		},
		{
			name:       "version help",
			args:       []string{"version"},
			wantStdout: "version information",
		},
		{
			name:       "unknown command",
			args:       []string{"frobnicate"},
			wantStderr: "Unknown command: frobnicate",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			deps, out, errOut := testDeps()
			runHelp(tt.args, deps)

			if tt.wantStdout != "" && !strings.Contains(out.String(), tt.wantStdout) {
				t.Errorf("stdout = %q, want substring %q", out.String(), tt.wantStdout)
			}
			if tt.wantStderr != "" && !strings.Contains(errOut.String(), tt.wantStderr) {
				t.Errorf("stderr = %q, want substring %q", errOut.String(), tt.wantStderr)
			}
		})
	}
}
