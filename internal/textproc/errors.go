package textproc

import "fmt"

// invalidCodepointError signals an encoder input outside the Unicode scalar
// range or inside the surrogate block.
type invalidCodepointError struct{ cp uint32 }

func (e invalidCodepointError) Error() string {
	return fmt.Sprintf("invalid codepoint U+%04X", e.cp)
}

// ErrInvalidCodepoint constructs an invalidCodepointError.
func ErrInvalidCodepoint(cp uint32) error { return invalidCodepointError{cp: cp} }

// IsInvalidCodepoint reports whether err indicates an unencodable codepoint.
func IsInvalidCodepoint(err error) bool {
	_, ok := err.(invalidCodepointError)
	return ok
}

// malformedPatternError signals input the preprocessor cannot normalize,
// e.g. an unterminated bracket expression.
type malformedPatternError struct{ msg string }

func (e malformedPatternError) Error() string { return "malformed pattern: " + e.msg }

// ErrMalformedPattern constructs a malformedPatternError.
func ErrMalformedPattern(msg string) error { return malformedPatternError{msg: msg} }

// IsMalformedPattern reports whether err indicates structurally broken
// pattern/grammar text.
func IsMalformedPattern(err error) bool {
	_, ok := err.(malformedPatternError)
	return ok
}

// invalidGrammarError signals grammar/pattern text that is well formed
// syntactically but cannot be encoded, e.g. a surrogate escape.
type invalidGrammarError struct{ msg string }

func (e invalidGrammarError) Error() string { return "invalid grammar: " + e.msg }

// ErrInvalidGrammar constructs an invalidGrammarError.
func ErrInvalidGrammar(msg string) error { return invalidGrammarError{msg: msg} }

// IsInvalidGrammar reports whether err indicates unencodable grammar text.
func IsInvalidGrammar(err error) bool {
	_, ok := err.(invalidGrammarError)
	return ok
}
