package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"native-thumbnail/internal/media"
)

// ErrUnsupported matches failures meaning the content cannot be turned into a
// thumbnail: unknown formats, unsupported codecs, corrupt files. It is an
// expected outcome, not a fault.
var ErrUnsupported = errors.New("extraction not supported for this content")

// Kind separates unsupported content from every other failure.
type Kind int

const (
	// KindFailed is any failure other than unsupported content.
	KindFailed Kind = iota
	// KindUnsupported means the content cannot be extracted.
	KindUnsupported
)

func (k Kind) String() string {
	if k == KindUnsupported {
		return "unsupported"
	}
	return "failed"
}

// Error is one strategy's failure. Code is an opaque diagnostic for logs.
type Error struct {
	Strategy string
	Kind     Kind
	Code     string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s strategy %s (%s): %v", e.Strategy, e.Kind, e.Code, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrUnsupported) true for unsupported failures.
func (e *Error) Is(target error) bool {
	return target == ErrUnsupported && e.Kind == KindUnsupported
}

// classify converts any strategy error into an *Error.
func classify(strategy string, err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		if e.Strategy == "" {
			e.Strategy = strategy
		}
		return e
	}

	out := &Error{Strategy: strategy, Kind: KindFailed, Code: "error", Err: err}

	var de *media.DecodeError
	switch {
	case errors.As(err, &de):
		out.Code = de.Code
		if de.Unsupported {
			out.Kind = KindUnsupported
		}
	case errors.Is(err, context.DeadlineExceeded):
		out.Code = "timeout"
	case errors.Is(err, context.Canceled):
		out.Code = "canceled"
	case errors.Is(err, ErrUnsupported), media.IsUnsupported(err):
		out.Kind = KindUnsupported
		out.Code = "unsupported"
	}
	return out
}

// ExhaustedError is returned by Selector.Select when no strategy succeeded.
type ExhaustedError struct {
	Attempts []*Error
}

// Unsupported reports whether every attempt failed because the content is
// unsupported.
func (e *ExhaustedError) Unsupported() bool {
	if len(e.Attempts) == 0 {
		return false
	}
	for _, a := range e.Attempts {
		if a.Kind != KindUnsupported {
			return false
		}
	}
	return true
}

// Last returns the final attempt, or nil.
func (e *ExhaustedError) Last() *Error {
	if len(e.Attempts) == 0 {
		return nil
	}
	return e.Attempts[len(e.Attempts)-1]
}

// Is matches ErrUnsupported only when every attempt was unsupported.
func (e *ExhaustedError) Is(target error) bool {
	return target == ErrUnsupported && e.Unsupported()
}

func (e *ExhaustedError) Error() string {
	if len(e.Attempts) == 0 {
		return "no extraction strategies configured"
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %s (%s): %v", a.Strategy, a.Kind, a.Code, a.Err))
	}
	return "all extraction strategies failed: " + strings.Join(parts, "; ")
}

// LastFailed returns the last attempt that was not unsupported, or nil.
func (e *ExhaustedError) LastFailed() *Error {
	for i := len(e.Attempts) - 1; i >= 0; i-- {
		if e.Attempts[i].Kind != KindUnsupported {
			return e.Attempts[i]
		}
	}
	return nil
}
