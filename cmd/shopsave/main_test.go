package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/webdienst24/shopsave/internal/logging"
	"github.com/webdienst24/shopsave/internal/types"
)

func TestPrintSummary(t *testing.T) {
	tests := []struct {
		name string
		code types.ExitCode
		warn bool
		want string
	}{
		{"success", types.ExitSuccess, false, "Finished successfully"},
		{"success with warnings", types.ExitSuccess, true, "Finished with warnings"},
		{"dump failure", types.ExitDumpFailed, false, "exit code 2"},
		{"media restore failure", types.ExitMediaRestoreFailed, false, "exit code 7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := logging.New(types.LogLevelDebug, false)
			logger.SetOutput(&buf)
			if tt.warn {
				logger.Warning("something odd")
			}

			printSummary(logger, tt.code)
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("summary %q missing %q", buf.String(), tt.want)
			}
		})
	}
}
