package remote

import (
	"context"
)

// Result holds the outcome of one remote command execution.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Success reports whether the command exited zero.
func (r Result) Success() bool {
	return r.ExitCode == 0
}

// Runner executes commands on a remote host. It abstracts the SSH
// transport so probes and tests can substitute their own execution.
// Implementations must honor the context deadline: a Run call never
// blocks past ctx expiry.
type Runner interface {
	// Run executes cmd on the host at addr. Transport failures are
	// returned as errors classified with pkg/errors codes (UNREACHABLE,
	// AUTH_FAILED, TIMEOUT); a non-zero remote exit status is not an
	// error, it is reported through Result.ExitCode.
	Run(ctx context.Context, addr, cmd string) (Result, error)
}
