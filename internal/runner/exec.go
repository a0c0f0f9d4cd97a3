package runner

import (
	"bytes"
	"context"
	"os/exec"

	"al.essio.dev/pkg/shellescape"
	"github.com/rs/zerolog"
)

// Outcome is the result of executing one test command.
type Outcome struct {
	Passed bool
	// Output is stdout on success, stderr on failure.
	Output string
}

// runCommand executes argv in dir and blocks until it exits. There is no
// timeout: a hung test hangs the run, and the only control is never
// starting the next test.
func runCommand(ctx context.Context, log zerolog.Logger, argv []string, dir string) Outcome {
	if len(argv) == 0 {
		return Outcome{Passed: false, Output: "could not execute test: empty command"}
	}

	log.Debug().Str("cmd", shellescape.QuoteCommand(argv)).Str("dir", dir).Msg("running test command")

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return Outcome{Passed: true, Output: stdout.String()}
	}

	if _, ok := err.(*exec.ExitError); ok {
		return Outcome{Passed: false, Output: stderr.String()}
	}
	// The command never started (missing binary, bad dir).
	return Outcome{Passed: false, Output: "could not execute test: " + err.Error()}
}
