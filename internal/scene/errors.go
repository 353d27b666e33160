package scene

import "fmt"

// MalformedRecordError reports a raw catalog entry that cannot become a Record.
type MalformedRecordError struct {
	SceneID string
	Reason  string
	Err     error
}

func malformed(id, reason string, err error) *MalformedRecordError {
	return &MalformedRecordError{SceneID: id, Reason: reason, Err: err}
}

func (e *MalformedRecordError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("scene %s: %s: %v", e.SceneID, e.Reason, e.Err)
	}
	return fmt.Sprintf("scene %s: %s", e.SceneID, e.Reason)
}

func (e *MalformedRecordError) Unwrap() error { return e.Err }

// ErrorKind classifies the error for workflow bookkeeping.
func (e *MalformedRecordError) ErrorKind() string { return "validation" }
