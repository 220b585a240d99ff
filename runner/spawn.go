package runner

import (
	"bytes"
	"context"
	"os/exec"

	"github.com/pkg/errors"
)

// ChildOutput is the captured output of a finished fork.
type ChildOutput struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Spawner starts a fork and waits for it to exit.
type Spawner interface {
	// Spawn returns an error only when the process could not be run at
	// all; a non-zero exit is reported through ChildOutput.ExitCode.
	Spawn(ctx context.Context, spec ChildSpec) (ChildOutput, error)
}

// ExecSpawner runs forks with os/exec, capturing stdout and stderr.
type ExecSpawner struct{}

// Spawn runs spec to completion.
func (ExecSpawner) Spawn(ctx context.Context, spec ChildSpec) (ChildOutput, error) {
	cmd := exec.CommandContext(ctx, spec.Executable, spec.Args...)
	cmd.Env = spec.Env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := ChildOutput{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if cmd.ProcessState != nil {
		out.ExitCode = cmd.ProcessState.ExitCode()
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		return out, errors.Wrapf(err, "failed to run %s", spec.Executable)
	}
	return out, nil
}
