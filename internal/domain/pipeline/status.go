// Package pipeline tracks the progress of the external analysis pipeline
// for every series of an uploaded archive.
package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidStatus = errors.New("invalid status")
	ErrNotFound      = errors.New("series status not found")
)

// Status is a pipeline step name, optionally prefixed with "Failed ".
type Status string

const (
	Preprocessing      Status = "Preprocessing"
	Segmentation       Status = "Segmentation"
	Resampling         Status = "Resampling"
	PathlineExtraction Status = "Pathline extraction"
	Slicing            Status = "Slicing"
	Done               Status = "Done"
)

const failedPrefix = "Failed "

// Steps lists the pipeline steps in execution order. Done is terminal.
var Steps = []Status{Preprocessing, Segmentation, Resampling, PathlineExtraction, Slicing, Done}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if st.Index() < 0 {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	if st.Failed() && st.Step() == Done {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return st, nil
}

// Failure marks step as failed.
func Failure(step Status) Status {
	return Status(failedPrefix + string(step.Step()))
}

func (s Status) Failed() bool {
	return strings.HasPrefix(string(s), failedPrefix)
}

// Step strips the failure prefix.
func (s Status) Step() Status {
	return Status(strings.TrimPrefix(string(s), failedPrefix))
}

// Index is the position of the status' step in Steps, or -1.
func (s Status) Index() int {
	step := s.Step()
	for i, candidate := range Steps {
		if candidate == step {
			return i
		}
	}
	return -1
}

func (s Status) String() string { return string(s) }

// CanTransition reports whether a series in cur may move to next. Reports
// for the current step are accepted, so a failure can overwrite the step it
// happened in. Reports for earlier steps are stale.
func CanTransition(cur, next Status) bool {
	c, n := cur.Index(), next.Index()
	if c < 0 || n < 0 {
		return false
	}
	return c <= n
}
