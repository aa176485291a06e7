package attach

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUploadFailed matches an AttachError with at least one failed upload.
	ErrUploadFailed = errors.New("asset upload failed")

	// ErrAllUploadsFailed matches an AttachError where no upload succeeded.
	ErrAllUploadsFailed = errors.New("all asset uploads failed")

	// ErrPartialTimeout matches an AttachError whose batch hit the grace period.
	ErrPartialTimeout = errors.New("asset upload batch timed out")

	// ErrInvalidUpload is returned before any work starts when the input is unusable.
	ErrInvalidUpload = errors.New("invalid upload")
)

// AssetFailure records one upload that did not succeed.
type AssetFailure struct {
	Index    int
	Filename string
	Err      error
}

// AttachError describes a batch that did not fully succeed. Assets listed in
// Completed are attached to the parent; Pending and Failed ones are not.
type AttachError struct {
	Completed []string
	Pending   []string
	Failed    []AssetFailure

	// TimedOut is set when the grace period expired.
	TimedOut bool
	// Cause is set when the caller's context ended the batch early.
	Cause error
}

// Error implements the error interface.
func (e *AttachError) Error() string {
	var b strings.Builder
	switch {
	case e.TimedOut:
		b.WriteString(ErrPartialTimeout.Error())
	case e.Cause != nil:
		fmt.Fprintf(&b, "asset upload batch interrupted: %v", e.Cause)
	case e.allFailed():
		b.WriteString(ErrAllUploadsFailed.Error())
	default:
		b.WriteString(ErrUploadFailed.Error())
	}
	fmt.Fprintf(&b, " (completed=%d pending=%d failed=%d)", len(e.Completed), len(e.Pending), len(e.Failed))
	for _, f := range e.Failed {
		fmt.Fprintf(&b, "; %s: %v", f.Filename, f.Err)
	}
	return b.String()
}

// Is lets errors.Is match the package sentinels.
func (e *AttachError) Is(target error) bool {
	switch target {
	case ErrPartialTimeout:
		return e.TimedOut
	case ErrUploadFailed:
		return len(e.Failed) > 0
	case ErrAllUploadsFailed:
		return e.allFailed()
	}
	return false
}

// Unwrap exposes the individual upload errors and the context cause.
func (e *AttachError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed)+1)
	for _, f := range e.Failed {
		errs = append(errs, f.Err)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// FailedFilenames returns the filenames of every upload that is not attached.
func (e *AttachError) FailedFilenames() []string {
	out := make([]string, 0, len(e.Failed)+len(e.Pending))
	for _, f := range e.Failed {
		out = append(out, f.Filename)
	}
	return append(out, e.Pending...)
}

func (e *AttachError) allFailed() bool {
	return len(e.Failed) > 0 && len(e.Completed) == 0 && len(e.Pending) == 0
}
