package handshake

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/balupi/internal/logging"
	"github.com/aretw0/balupi/pkg/adapters/process"
)

// TransferTool is the registered process name used for inbox flushes.
const TransferTool = "rsync"

// TransferTimeout bounds one flush when the registry sets no timeout of its own.
const TransferTimeout = 30 * time.Minute

// CommandRunner executes allow-listed processes.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (process.Result, error)
}

// Inbox is the staging directory for files accepted while the host was away.
type Inbox struct {
	dir     string
	remote  string
	runner  CommandRunner
	devMode bool
	logger  *slog.Logger
}

// InboxOption configures an Inbox.
type InboxOption func(*Inbox)

// WithInboxLogger sets the logger.
func WithInboxLogger(logger *slog.Logger) InboxOption {
	return func(i *Inbox) {
		i.logger = logger
	}
}

// WithDevMode disables flushing.
func WithDevMode(devMode bool) InboxOption {
	return func(i *Inbox) {
		i.devMode = devMode
	}
}

// NewInbox creates an inbox at dir flushed to user@hostIP:remotePath.
func NewInbox(dir string, runner CommandRunner, user, hostIP, remotePath string, opts ...InboxOption) *Inbox {
	i := &Inbox{
		dir:    dir,
		remote: user + "@" + hostIP + ":" + strings.TrimRight(remotePath, "/") + "/",
		runner: runner,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Dir returns the local inbox path.
func (i *Inbox) Dir() string {
	return i.dir
}

// Args returns the transfer arguments.
func (i *Inbox) Args() []string {
	return []string{"-avz", "--remove-source-files", strings.TrimRight(i.dir, "/") + "/", i.remote}
}

func (i *Inbox) empty() bool {
	entries, err := os.ReadDir(i.dir)
	return err != nil || len(entries) == 0
}

// Flush moves queued files to the host and returns how many were transferred.
// Files that fail to transfer stay queued; any failure yields 0.
func (i *Inbox) Flush(ctx context.Context) int {
	if i.devMode {
		i.logger.Info("[DEV] Inbox flush not executed")
		return 0
	}
	if i.empty() {
		i.logger.Info("Inbox is empty, nothing to flush")
		return 0
	}

	res, err := i.runner.Run(ctx, TransferTool, i.Args()...)
	if err != nil {
		switch {
		case errors.Is(err, exec.ErrNotFound):
			i.logger.Error("rsync not found, cannot flush inbox")
		default:
			i.logger.Error("Inbox flush failed", "error", err, "stderr", strings.TrimSpace(res.Stderr))
		}
		return 0
	}

	n := CountTransferred(res.Stdout)
	i.logger.Info("Inbox flushed", "files", n)
	return n
}

// SizeBytes sums the sizes of regular files under the inbox. A missing inbox is empty.
func (i *Inbox) SizeBytes() int64 {
	var total int64
	_ = filepath.WalkDir(i.dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type().IsRegular() {
			if info, err := d.Info(); err == nil {
				total += info.Size()
			}
		}
		return nil
	})
	return total
}

var summaryPrefixes = []string{"sending", "sent", "total", "building", "created"}

// CountTransferred counts file lines in verbose rsync output, skipping
// summary lines and directory entries.
func CountTransferred(output string) int {
	n := 0
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" || strings.HasSuffix(line, "/") {
			continue
		}
		summary := false
		for _, p := range summaryPrefixes {
			if strings.HasPrefix(line, p) {
				summary = true
				break
			}
		}
		if !summary {
			n++
		}
	}
	return n
}
