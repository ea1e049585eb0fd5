package clips

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"time"

	"github.com/fieldside/tagd/internal/logging"
)

const maxStderrBytes = 8 * 1024 // 8 KB tail of stderr kept for diagnostics

// Transcoder cuts a window out of a source video into outPath.
type Transcoder interface {
	Cut(ctx context.Context, source string, start, duration float64, outPath string) error
}

// FFmpeg runs the ffmpeg binary as a subprocess.
type FFmpeg struct {
	binary  string
	timeout time.Duration // zero means no per-cut timeout
	logger  *slog.Logger
}

// NewFFmpeg resolves the ffmpeg binary and returns a subprocess-backed
// transcoder. An empty preferred path means look up "ffmpeg" on PATH.
func NewFFmpeg(preferred string, timeout time.Duration, logger *slog.Logger) (*FFmpeg, error) {
	binary, err := resolveFFmpeg(preferred)
	if err != nil {
		return nil, fmt.Errorf("cannot locate ffmpeg: %w", err)
	}

	logger.Info("transcoder initialised", "ffmpeg", binary)
	return &FFmpeg{binary: binary, timeout: timeout, logger: logger}, nil
}

func (f *FFmpeg) Cut(ctx context.Context, source string, start, duration float64, outPath string) error {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	begin := time.Now()
	cmd := exec.CommandContext(ctx, f.binary, cutArgs(source, start, duration, outPath)...)

	// Capture stderr with bounded buffer
	var stderrBuf bytes.Buffer
	cmd.Stderr = io.Writer(&limitedWriter{w: &stderrBuf, limit: maxStderrBytes})
	cmd.Stdout = io.Discard

	err := cmd.Run()
	elapsed := time.Since(begin)

	if err != nil {
		exitCode := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		f.logger.Warn("transcode failed",
			"exit_code", exitCode,
			"duration_ms", elapsed.Milliseconds(),
			"output", logging.SanitizePath(outPath),
		)
		stderr := stderrBuf.String()
		if stderr == "" {
			return fmt.Errorf("ffmpeg: %w", err)
		}
		return fmt.Errorf("ffmpeg exited %d: %s", exitCode, stderr)
	}

	f.logger.Info("transcode complete",
		"duration_ms", elapsed.Milliseconds(),
		"output", logging.SanitizePath(outPath),
	)
	return nil
}

func cutArgs(source string, start, duration float64, outPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-loglevel", "error",
		"-y",
		"-ss", strconv.FormatFloat(start, 'f', -1, 64),
		"-i", source,
		"-t", strconv.FormatFloat(duration, 'f', -1, 64),
		outPath,
	}
}

func resolveFFmpeg(preferred string) (string, error) {
	if preferred != "" {
		if p, err := exec.LookPath(preferred); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("configured ffmpeg %q not found", preferred)
	}
	if p, err := exec.LookPath("ffmpeg"); err == nil {
		return p, nil
	}
	return "", fmt.Errorf("no ffmpeg binary found on PATH")
}

// limitedWriter is an io.Writer that keeps only the last `limit` bytes.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		// Keep only the tail
		b := lw.w.Bytes()
		lw.w.Reset()
		lw.w.Write(b[len(b)-lw.limit:])
	}
	return n, nil
}
