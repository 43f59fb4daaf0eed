package pipeline

import (
	"errors"
	"fmt"
)

// ErrEndOfDocument is the typed end-of-pages signal from the remote page
// extractor. Callers treat it as "no more pages", never as a hard failure.
var ErrEndOfDocument = errors.New("end of document")

// ToolError reports that an external binary failed or is absent.
type ToolError struct {
	Tool string
	Err  error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %v", e.Tool, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }

// RemoteError reports a cloud API failure, including rate-limit and
// payload-too-large conditions.
type RemoteError struct {
	Service   string
	Retryable bool
	Err       error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }
