// Package transcoder runs the external media tool that does the actual
// audio work.
package transcoder

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/apex/log"
	"github.com/cockroachdb/errors"
)

// DefaultBinary is looked up on PATH when no binary is configured.
const DefaultBinary = "ffmpeg"

// ErrFailed marks every *Error so callers can test with errors.Is.
var ErrFailed = errors.New("transcoder failed")

// Runner runs the transcoder once and waits for it to exit.
type Runner interface {
	Run(ctx context.Context, args []string) error
}

// Error is returned when the transcoder exits nonzero.
type Error struct {
	Binary   string
	Args     []string
	ExitCode int
	Stderr   string
	wrapped  error
}

func (e *Error) Error() string {
	cmd := e.Binary + " " + strings.Join(e.Args, " ")
	if len(cmd) > 200 {
		cmd = cmd[:200] + "..."
	}
	return fmt.Sprintf("%s exited with code %d: %s\nCommand: %s",
		e.Binary, e.ExitCode, strings.TrimSpace(e.Stderr), cmd)
}

func (e *Error) Unwrap() error {
	return e.wrapped
}

func (e *Error) Is(target error) bool {
	return target == ErrFailed
}

// FFmpeg runs an ffmpeg binary as a subprocess.
type FFmpeg struct {
	bin    string
	logger log.Interface
}

var _ Runner = (*FFmpeg)(nil)

// NewFFmpeg resolves bin on PATH (or as a path) and returns a runner for it.
func NewFFmpeg(bin string, logger log.Interface) (*FFmpeg, error) {
	if bin == "" {
		bin = DefaultBinary
	}

	path, err := exec.LookPath(bin)
	if err != nil {
		return nil, errors.Wrapf(err, "transcoder %q not found", bin)
	}

	return &FFmpeg{bin: path, logger: logger}, nil
}

// Binary returns the resolved path of the transcoder.
func (f *FFmpeg) Binary() string {
	return f.bin
}

// Run starts the transcoder, captures its stderr and waits for it. A
// nonzero exit is returned as *Error carrying the captured output.
func (f *FFmpeg) Run(ctx context.Context, args []string) error {
	logger := f.logger.WithField("bin", f.bin)
	logger.WithField("args", args).Debug("Running transcoder")

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, f.bin, args...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return errors.Wrapf(err, "failed to start %s", f.bin)
		}

		return &Error{
			Binary:   f.bin,
			Args:     args,
			ExitCode: exitErr.ExitCode(),
			Stderr:   stderr.String(),
			wrapped:  err,
		}
	}

	logger.Debug("Transcoder finished")
	return nil
}
