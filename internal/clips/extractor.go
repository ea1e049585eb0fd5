// Package clips cuts short excerpts around tagged events from a source
// video via an external transcoder.
package clips

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/fieldside/tagd/internal/events"
	"github.com/fieldside/tagd/internal/logging"
)

// ClipFailure describes one failed transcode within an extraction run.
type ClipFailure struct {
	Index    int
	Start    float64
	Duration float64
	Err      error
}

// ExtractionError aggregates the failed transcodes of a run. Siblings that
// succeeded have their output files on disk; nothing is cleaned up, since
// each clip is independently useful.
type ExtractionError struct {
	Failures []ClipFailure
	Total    int
}

func (e *ExtractionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "extraction failed for %d of %d clips", len(e.Failures), e.Total)
	for _, f := range e.Failures {
		fmt.Fprintf(&b, "; clip %d [%.2fs +%.2fs]: %v", f.Index, f.Start, f.Duration, f.Err)
	}
	return b.String()
}

type ExtractService interface {
	Extract(ctx context.Context, source string, pre, post float64, evs []*events.Event, outDir string) ([]string, error)
}

// Extractor issues one transcode per event, concurrently and without
// ordering dependency.
type Extractor struct {
	transcoder  Transcoder
	concurrency int
	logger      *slog.Logger
}

func NewExtractor(transcoder Transcoder, concurrency int, logger *slog.Logger) *Extractor {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Extractor{transcoder: transcoder, concurrency: concurrency, logger: logger}
}

type clipResult struct {
	path string
	err  error
}

// Extract cuts a clip window around each event. The window is
// [max(0, timestamp-pre), timestamp+post]; duration is always pre+post.
// Every transcode runs to completion even after a sibling fails; failures
// are aggregated into an ExtractionError after the join. On success the
// returned paths follow the event order.
func (x *Extractor) Extract(ctx context.Context, source string, pre, post float64, evs []*events.Event, outDir string) ([]string, error) {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	x.logger.Info("extraction started",
		"source", logging.SanitizePath(source),
		"clips", len(evs),
		"pre_s", pre,
		"post_s", post,
	)

	results := make([]clipResult, len(evs))
	windows := make([][2]float64, len(evs))

	var g errgroup.Group
	g.SetLimit(x.concurrency)

	for i, e := range evs {
		i := i
		start, duration := ClipWindow(e.TimestampS, pre, post)
		windows[i] = [2]float64{start, duration}
		outPath := filepath.Join(outDir, ClipFilename(i, start, e.Label))

		g.Go(func() error {
			err := x.transcoder.Cut(ctx, source, start, duration, outPath)
			results[i] = clipResult{path: outPath, err: err}
			if err != nil {
				x.logger.Warn("clip failed", "index", i, "start_s", start, "error", err)
			}
			// Errors are collected per clip; never abort siblings.
			return nil
		})
	}

	g.Wait()

	var failures []ClipFailure
	paths := make([]string, 0, len(results))
	for i, res := range results {
		if res.err != nil {
			failures = append(failures, ClipFailure{
				Index:    i,
				Start:    windows[i][0],
				Duration: windows[i][1],
				Err:      res.err,
			})
			continue
		}
		paths = append(paths, res.path)
	}

	if len(failures) > 0 {
		return nil, &ExtractionError{Failures: failures, Total: len(evs)}
	}

	x.logger.Info("extraction complete", "clips", len(paths), "out_dir", logging.SanitizePath(outDir))
	return paths, nil
}

// ClipWindow computes the clip start and duration for an event timestamp.
// The start never goes negative; the duration is always pre+post as
// requested.
func ClipWindow(timestampS, pre, post float64) (start, duration float64) {
	start = timestampS - pre
	if start < 0 {
		start = 0
	}
	return start, pre + post
}

var nonWord = regexp.MustCompile(`\W+`)

// ClipFilename names an output file from the event's position in the run,
// the window start and a filesystem-safe form of the label.
func ClipFilename(index int, start float64, label string) string {
	if label == "" {
		label = "event"
	}
	return fmt.Sprintf("%04d_%.2fs_%s.mp4", index, start, nonWord.ReplaceAllString(label, "_"))
}
