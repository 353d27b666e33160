package compare

import "fmt"

// ComparatorError reports a rule that failed while comparing a pair.
type ComparatorError struct {
	Rule string
	A, B int64
	Err  error
}

func (e *ComparatorError) Error() string {
	return fmt.Sprintf("compare %d with %d using <%s>: %v", e.A, e.B, e.Rule, e.Err)
}

func (e *ComparatorError) Unwrap() error { return e.Err }

// ConfigError reports an unusable comparator configuration.
type ConfigError struct {
	Rule   string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Rule == "" {
		return "duplicates.priority: " + e.Reason
	}
	return fmt.Sprintf("duplicates.priority: %q: %s", e.Rule, e.Reason)
}

// ErrorKind classifies the error for workflow bookkeeping.
func (e *ConfigError) ErrorKind() string { return "configuration" }
