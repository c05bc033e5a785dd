package migration

import (
	"fmt"

	"gitlab.com/tozd/go/errors"
)

var (
	// ErrAuthentication aborts a run whose credentials a site rejected
	ErrAuthentication = errors.New("authentication failed")

	// ErrDiscovery aborts a run that could not enumerate the source posts
	ErrDiscovery = errors.New("content discovery failed")

	// ErrDuplicatePost marks a post skipped because its title already exists
	ErrDuplicatePost = errors.New("a post with the same title already exists")
)

// Phase is the step of a post migration an error happened in.
type Phase string

const (
	PhaseFetch     Phase = "fetch"
	PhaseTransform Phase = "transform"
	PhaseCreate    Phase = "create"
	PhaseMedia     Phase = "media"
)

// PostError is a failure confined to one source post. The run continues.
type PostError struct {
	PostID int
	Phase  Phase
	Cause  error
}

func (e *PostError) Error() string {
	return fmt.Sprintf("%s post %d: %v", e.Phase, e.PostID, e.Cause)
}

func (e *PostError) Unwrap() error {
	return e.Cause
}

func NewPostError(phase Phase, postID int, cause error) *PostError {
	return &PostError{
		PostID: postID,
		Phase:  phase,
		Cause:  cause,
	}
}

// FatalError stops the run. It matches both its Kind sentinel and the
// underlying cause.
type FatalError struct {
	Kind  error
	Cause error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%v: %v", e.Kind, e.Cause)
}

func (e *FatalError) Unwrap() []error {
	return []error{e.Kind, e.Cause}
}

func newFatalError(kind, cause error) *FatalError {
	return &FatalError{Kind: kind, Cause: cause}
}

// IsFatal reports whether err should abort the whole run.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}

// PhaseOf returns the phase of a PostError in err's chain.
func PhaseOf(err error) (Phase, bool) {
	var postErr *PostError
	if errors.As(err, &postErr) {
		return postErr.Phase, true
	}
	return "", false
}
