package port

import (
	"context"
	"fmt"
)

// Profile selects the transcoding pipeline variant.
type Profile string

const (
	// ProfileInteractive is a single-pass encode run under a hard deadline.
	ProfileInteractive Profile = "interactive"
	// ProfileBatch is the heavy multi-pass encode. It carries no deadline of
	// its own; the queue's visibility timeout is the outer bound.
	ProfileBatch Profile = "batch"
)

// ExitError reports a transcoder run that started but finished with a
// non-zero exit code. It is a domain failure, not an infrastructure one.
type ExitError struct {
	Code   int
	Output string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("transcoder exited with code %d: %s", e.Code, e.Output)
}

// Transcoder runs the external CPU-bound transcoding process to completion.
// Deadline expiry on ctx forcibly terminates the process; callers treat it
// identically to a non-zero exit. Stdout/stderr are captured for diagnostics
// only, never parsed for control decisions.
type Transcoder interface {
	Run(ctx context.Context, inputPath, outputPath string, profile Profile) error
}
