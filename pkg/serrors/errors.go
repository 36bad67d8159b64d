package serrors

import "fmt"

// Error is a stable, code-addressable error. Instances are declared as
// package-level sentinels and matched with errors.Is after wrapping.
type Error struct {
	Code    string
	Message string
	Hint    string
}

func NewError(code, message, hint string) *Error {
	return &Error{Code: code, Message: message, Hint: hint}
}

func (e *Error) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
