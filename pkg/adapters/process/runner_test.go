package process_test

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/aretw0/balupi/pkg/adapters/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipOnWindows(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func TestRunner_Run(t *testing.T) {
	skipOnWindows(t)

	runner := process.NewRunner()
	runner.Register("greet", "sh", "-c", `echo "hello $0"`)
	assert.True(t, runner.Registered("greet"))

	t.Run("Executes Registered Command", func(t *testing.T) {
		res, err := runner.Run(context.Background(), "greet", "world")
		require.NoError(t, err)
		assert.Equal(t, "hello world\n", res.Stdout)
		assert.Equal(t, 0, res.ExitCode)
	})

	t.Run("Fails For Unregistered Command", func(t *testing.T) {
		_, err := runner.Run(context.Background(), "hacker_script")
		assert.ErrorIs(t, err, process.ErrNotRegistered)
	})

	t.Run("Reports Exit Code And Stderr", func(t *testing.T) {
		runner.Register("fail", "sh", "-c", "echo boom >&2; exit 23")
		res, err := runner.Run(context.Background(), "fail")
		require.Error(t, err)
		var exitErr *exec.ExitError
		assert.True(t, errors.As(err, &exitErr))
		assert.Equal(t, 23, res.ExitCode)
		assert.Equal(t, "boom\n", res.Stderr)
	})

	t.Run("Missing Binary", func(t *testing.T) {
		runner.Register("ghost", "balupi-no-such-binary")
		_, err := runner.Run(context.Background(), "ghost")
		assert.ErrorIs(t, err, exec.ErrNotFound)
	})

	t.Run("Cancelled Context Stops Process", func(t *testing.T) {
		runner.Register("slow", "sleep", "10")
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		start := time.Now()
		_, err := runner.Run(ctx, "slow")
		assert.Error(t, err)
		assert.Less(t, time.Since(start), 5*time.Second)
	})
}

func TestRunner_RegistryFromConfig(t *testing.T) {
	skipOnWindows(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "processes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
processes:
  - name: rsync
    command: sh
    args: ["-c", "echo $TRANSFER_TAG $0"]
    env:
      TRANSFER_TAG: via-config
`), 0o644))

	procs, err := process.LoadRegistry(path)
	require.NoError(t, err)
	require.Len(t, procs, 1)

	runner := process.NewRunner(process.WithRegistry(procs), process.WithBaseDir(dir))
	res, err := runner.Run(context.Background(), "rsync", "src/")
	require.NoError(t, err)
	assert.Equal(t, "via-config src/\n", res.Stdout)
}

func TestRunner_RegistryTimeout(t *testing.T) {
	skipOnWindows(t)

	runner := process.NewRunner(process.WithRegistry(map[string]process.RegisteredProcess{
		"slow": {Command: "sleep", Args: []string{"10"}, Timeout: 100 * time.Millisecond},
	}))

	start := time.Now()
	_, err := runner.Run(context.Background(), "slow")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRunner_KilledParentDoesNotWaitForChildren(t *testing.T) {
	skipOnWindows(t)

	runner := process.NewRunner()
	// sh forks sleep, which still holds stdout after sh is killed.
	runner.Register("orphan", "sh", "-c", "sleep 10; echo done")
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := runner.Run(ctx, "orphan")
	assert.Error(t, err)
	assert.Less(t, time.Since(start), process.WaitDelay+3*time.Second)
}

func TestLoadRegistry(t *testing.T) {
	dir := t.TempDir()

	procs, err := process.LoadRegistry(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Empty(t, procs)

	jsonPath := filepath.Join(dir, "processes.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"processes":[{"name":"rsync","command":"/usr/bin/rsync","args":["-e","ssh -i /keys/id"],"timeout":"30m"}]}`), 0o644))
	procs, err = process.LoadRegistry(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/rsync", procs["rsync"].Command)
	assert.Equal(t, []string{"-e", "ssh -i /keys/id"}, procs["rsync"].Args)
	assert.Equal(t, 30*time.Minute, procs["rsync"].Timeout)

	cases := []struct{ body, want string }{
		{body: "processes:\n  - name: rsync\n", want: "command is required"},
		{body: "processes:\n  - command: rsync\n", want: "name is required"},
		{body: "processes:\n  - name: rsync\n    command: rsync\n    timeout: soon\n", want: "invalid timeout"},
	}
	for _, tc := range cases {
		bad := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(bad, []byte(tc.body), 0o644))
		_, err = process.LoadRegistry(bad)
		assert.ErrorContains(t, err, tc.want)
	}

	garbled := filepath.Join(dir, "garbled.json")
	require.NoError(t, os.WriteFile(garbled, []byte("{"), 0o644))
	_, err = process.LoadRegistry(garbled)
	assert.Error(t, err)
}
