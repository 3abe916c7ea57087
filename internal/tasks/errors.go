package tasks

import "strconv"

// unknownTaskError signals an operation on an id that was never assigned
// or was already released.
type unknownTaskError struct{ id int64 }

func (e unknownTaskError) Error() string {
	return "unknown task: " + strconv.FormatInt(e.id, 10)
}

// ErrUnknownTask constructs an unknownTaskError.
func ErrUnknownTask(id int64) error { return unknownTaskError{id: id} }

// IsUnknownTask reports whether err refers to a missing task id.
func IsUnknownTask(err error) bool {
	_, ok := err.(unknownTaskError)
	return ok
}

// invalidParametersError signals a malformed submit request.
type invalidParametersError struct{ msg string }

func (e invalidParametersError) Error() string { return "invalid parameters: " + e.msg }

// ErrInvalidParameters constructs an invalidParametersError.
func ErrInvalidParameters(msg string) error { return invalidParametersError{msg: msg} }

// IsInvalidParameters reports whether err indicates a malformed request.
func IsInvalidParameters(err error) bool {
	_, ok := err.(invalidParametersError)
	return ok
}

// invalidGrammarError wraps a preprocessing failure surfaced at submit
// time. No task is registered when this is returned.
type invalidGrammarError struct{ cause error }

func (e invalidGrammarError) Error() string { return e.cause.Error() }

func (e invalidGrammarError) Unwrap() error { return e.cause }

// ErrInvalidGrammar wraps cause as a submit-time grammar failure.
func ErrInvalidGrammar(cause error) error { return invalidGrammarError{cause: cause} }

// IsInvalidGrammar reports whether err indicates a grammar that could not
// be normalized.
func IsInvalidGrammar(err error) bool {
	_, ok := err.(invalidGrammarError)
	return ok
}
