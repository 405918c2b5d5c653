package config

import "fmt"

// MalformedConfigError reports a pipeline definition that is unparseable or
// structurally invalid. It is fatal: nothing runs when loading fails.
type MalformedConfigError struct {
	// Path is the definition file the error originates from.
	Path string
	// Detail describes what is wrong, in terms of the definition.
	Detail string
	// Err optionally carries the underlying parser error.
	Err error
}

func (e *MalformedConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed pipeline definition %s: %s: %v", e.Path, e.Detail, e.Err)
	}
	return fmt.Sprintf("malformed pipeline definition %s: %s", e.Path, e.Detail)
}

func (e *MalformedConfigError) Unwrap() error { return e.Err }

// Malformedf builds a *MalformedConfigError with a formatted detail message.
func Malformedf(path, format string, args ...any) *MalformedConfigError {
	return &MalformedConfigError{Path: path, Detail: fmt.Sprintf(format, args...)}
}
