// Package textproc normalizes user-supplied constraint syntax (GBNF
// grammars and regex-like patterns) into the form the llama.cpp grammar
// compiler accepts: numeric escapes decoded to literal UTF-8 and negated
// character classes expanded to positive ones.
package textproc

// PreprocessPattern normalizes a regex-like pattern for the constrained
// sampler. Escape decoding runs before class expansion so classes written
// with escapes are negated over their decoded forms.
func PreprocessPattern(pattern string) (string, error) {
	s, err := decodeEscapes(pattern)
	if err != nil {
		return "", err
	}
	return expandNegatedClasses(s)
}
