package adb

import (
	"bytes"
	"context"
	"os/exec"
)

// execRunner is the production runner. Stdout and stderr are captured
// separately; exec.CommandContext kills the process if the invocation
// timeout or the run's cancellation fires first.
func execRunner(ctx context.Context, path string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, path, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	// Surface the cancellation cause over the generic "signal: killed"
	// the process reports after a context kill.
	if ctxErr := ctx.Err(); ctxErr != nil && err != nil {
		err = ctxErr
	}

	return stdout.Bytes(), stderr.Bytes(), err
}
