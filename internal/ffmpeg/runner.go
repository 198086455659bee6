package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"loopmix/internal/pkg/errors"
	"loopmix/internal/pkg/logger"
)

// maxStderrTail bounds how much ffmpeg output is carried into error text.
const maxStderrTail = 2000

// Runner executes ffmpeg commands.
type Runner struct {
	ffmpegBin string
	log       *logger.Logger
}

// NewRunner creates a runner for the given ffmpeg binary. The binary must
// be resolvable at construction time so a broken install fails at startup.
func NewRunner(ffmpegBin string, log *logger.Logger) (*Runner, error) {
	if _, err := exec.LookPath(ffmpegBin); err != nil {
		return nil, fmt.Errorf("ffmpeg binary not found: %s", ffmpegBin)
	}
	if log == nil {
		log = logger.NewDefault()
	}
	return &Runner{
		ffmpegBin: ffmpegBin,
		log:       log.WithComponent("ffmpeg"),
	}, nil
}

// Run executes ffmpeg with the given arguments and waits for completion.
// A nonzero exit is returned as a TRANSCODE error carrying the stderr tail.
func (r *Runner) Run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, r.ffmpegBin, args...)

	var stderr bytes.Buffer
	cmd.Stdout = &stderr
	cmd.Stderr = &stderr

	r.log.FromContext(ctx).Debug("executing ffmpeg",
		"args", strings.Join(args, " "),
	)

	if err := cmd.Run(); err != nil {
		tail := stderr.String()
		if len(tail) > maxStderrTail {
			tail = tail[len(tail)-maxStderrTail:]
		}
		return errors.WrapWithCode(err, errors.CodeTranscode, "ffmpeg.run",
			fmt.Sprintf("ffmpeg failed: %s", strings.TrimSpace(tail)))
	}

	return nil
}
