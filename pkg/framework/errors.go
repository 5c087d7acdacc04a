package framework

import "strings"

// AggregatedError collects errors from multiple tasks into one.
type AggregatedError struct {
	Errors []error
}

// Error implements error.
func (e *AggregatedError) Error() string {
	if len(e.Errors) == 0 {
		return ""
	}
	var msg strings.Builder
	msg.WriteString("Multiple errors:")
	for _, err := range e.Errors {
		msg.WriteString("\n")
		msg.WriteString(err.Error())
	}
	return msg.String()
}

// Add adds errors to be aggregated, skipping nil values.
func (e *AggregatedError) Add(errs ...error) *AggregatedError {
	for _, err := range errs {
		if err != nil {
			e.Errors = append(e.Errors, err)
		}
	}
	return e
}

// Aggregate returns the collected errors as one error, or nil when
// nothing was added.
func (e *AggregatedError) Aggregate() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}
