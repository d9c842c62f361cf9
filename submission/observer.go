package submission

import "time"

type State int

const (
	Idle State = iota
	Uploading
	Validating
	Persisting
	Done
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Uploading:
		return "uploading"
	case Validating:
		return "validating"
	case Persisting:
		return "persisting"
	case Done:
		return "done"
	}
	return "unknown"
}

// Observer follows submissions through the pipeline.
type Observer interface {
	Transition(formID string, from, to State)
	Uploaded(formID, filename string, err error)
	Finished(formID string, err error, elapsed time.Duration)
}

type NopObserver struct{}

func (NopObserver) Transition(string, State, State)       {}
func (NopObserver) Uploaded(string, string, error)        {}
func (NopObserver) Finished(string, error, time.Duration) {}
