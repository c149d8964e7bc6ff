package thumbnail

import (
	"fmt"
	"net/http"
)

// Category classifies a failed request.
type Category string

const (
	SourceNotFound          Category = "SourceNotFound"
	DirectoryCreationFailed Category = "DirectoryCreationFailed"
	WriteFailed             Category = "WriteFailed"
	Unknown                 Category = "Unknown"
	InvalidRequest          Category = "InvalidRequest"
)

func (c Category) metricLabel() string {
	switch c {
	case SourceNotFound:
		return "source_not_found"
	case DirectoryCreationFailed:
		return "directory_creation_failed"
	case WriteFailed:
		return "write_failed"
	case InvalidRequest:
		return "invalid_request"
	default:
		return "unknown"
	}
}

// HTTPStatus maps the category to a response status.
func (c Category) HTTPStatus() int {
	switch c {
	case SourceNotFound:
		return http.StatusNotFound
	case InvalidRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Failure is a hard error for a request. Detail is human-readable; Code is an
// opaque diagnostic, when one is available.
type Failure struct {
	Category Category
	Detail   string
	Code     string
	Err      error
}

func (f *Failure) Error() string {
	if f.Code != "" {
		return fmt.Sprintf("%s (%s): %s", f.Category, f.Code, f.Detail)
	}
	return fmt.Sprintf("%s: %s", f.Category, f.Detail)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Outcome is the single result of ExtractThumbnail. Exactly one of these holds:
// Failure is set; or Failure is nil and Produced says whether a thumbnail was
// written. Produced false with no Failure means the content is not supported,
// which is a normal result.
type Outcome struct {
	Produced bool
	Failure  *Failure

	RequestID   string
	Source      string
	Destination string
}

// Err returns the failure as an error, or nil.
func (o Outcome) Err() error {
	if o.Failure == nil {
		return nil
	}
	return o.Failure
}

func (o Outcome) metricLabel() string {
	switch {
	case o.Failure != nil:
		return o.Failure.Category.metricLabel()
	case o.Produced:
		return "success"
	default:
		return "unsupported"
	}
}

// Fail builds a failed Outcome of category c.
func Fail(c Category, err error) Outcome {
	return Outcome{Failure: &Failure{Category: c, Detail: err.Error(), Err: err}}
}
