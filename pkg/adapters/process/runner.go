package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"slices"
	"sort"
	"time"
)

// ErrNotRegistered is returned when a process name is not on the allow-list.
var ErrNotRegistered = errors.New("process not registered")

// WaitDelay bounds how long Run waits for output pipes once the process is killed.
const WaitDelay = 2 * time.Second

// Result is the captured outcome of one execution.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes local processes from an allow-list.
// Callers refer to processes by name; only registered commands ever run.
type Runner struct {
	registry map[string]RegisteredProcess
	baseDir  string
}

// RegisteredProcess defines an allowed command execution.
type RegisteredProcess struct {
	Command string
	Args    []string // prepended to the caller's args
	Env     map[string]string
	Timeout time.Duration // zero leaves the caller's deadline alone
}

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithRegistry populates the allow-list, typically from LoadRegistry.
func WithRegistry(procs map[string]RegisteredProcess) RunnerOption {
	return func(r *Runner) {
		for name, proc := range procs {
			r.registry[name] = proc
		}
	}
}

// WithBaseDir sets the working directory for executed processes.
func WithBaseDir(dir string) RunnerOption {
	return func(r *Runner) {
		r.baseDir = dir
	}
}

// NewRunner creates a new process runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		registry: make(map[string]RegisteredProcess),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a trusted command to the allow-list.
func (r *Runner) Register(name string, command string, args ...string) {
	r.registry[name] = RegisteredProcess{
		Command: command,
		Args:    args,
	}
}

// Lookup returns the registered process for name.
func (r *Runner) Lookup(name string) (RegisteredProcess, bool) {
	proc, ok := r.registry[name]
	return proc, ok
}

// Registered reports whether name is on the allow-list.
func (r *Runner) Registered(name string) bool {
	_, ok := r.registry[name]
	return ok
}

// Run executes the registered process name with extra args appended.
// A non-zero exit returns the captured Result together with an error wrapping *exec.ExitError;
// a missing binary wraps exec.ErrNotFound.
func (r *Runner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	proc, ok := r.registry[name]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrNotRegistered, name)
	}

	if proc.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, proc.Timeout)
		defer cancel()
	}

	argv := append(slices.Clone(proc.Args), args...)
	cmd := exec.CommandContext(ctx, proc.Command, argv...)
	cmd.Dir = r.baseDir
	// Children of the process (ssh under rsync) may keep the output pipes open after a kill.
	cmd.WaitDelay = WaitDelay

	if len(proc.Env) > 0 {
		keys := make([]string, 0, len(proc.Env))
		for k := range proc.Env {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		env := cmd.Environ()
		for _, k := range keys {
			env = append(env, k+"="+proc.Env[k])
		}
		cmd.Env = env
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}

	if err != nil {
		var exitErr *exec.ExitError
		if ctx.Err() != nil {
			return result, fmt.Errorf("%s interrupted: %w", name, ctx.Err())
		}
		if errors.As(err, &exitErr) {
			return result, fmt.Errorf("%s exited with code %d: %w", name, result.ExitCode, err)
		}
		return result, fmt.Errorf("execution of %s failed: %w", name, err)
	}
	return result, nil
}
