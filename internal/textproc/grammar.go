package textproc

// PreprocessGrammar normalizes GBNF grammar text. Grammar rule bodies are
// a superset of the pattern syntax: besides \uXXXX and \xXX escapes they
// may reference codepoints directly as U+XXXX, which is normalized through
// the same encoder. Pass order matters: escapes and references decode
// first so negated classes see literal characters.
func PreprocessGrammar(grammar string) (string, error) {
	s, err := decodeEscapes(grammar)
	if err != nil {
		return "", err
	}
	s, err = encodeCodepointRefs(s)
	if err != nil {
		return "", err
	}
	return expandNegatedClasses(s)
}

// encodeCodepointRefs rewrites U+XXXX references (4 to 6 hex digits) as
// literal UTF-8 text. Malformed references stay untouched, like malformed
// escapes.
func encodeCodepointRefs(in string) (string, error) {
	var out []byte
	for i := 0; i < len(in); i++ {
		if in[i] != 'U' || i+1 >= len(in) || in[i+1] != '+' {
			out = append(out, in[i])
			continue
		}
		n := 0
		for i+2+n < len(in) && n < 6 && hexDigit(in[i+2+n]) >= 0 {
			n++
		}
		if n < 4 {
			out = append(out, in[i])
			continue
		}
		cp, _ := parseHex(in, i+2, n)
		if cp >= surrogateMin && cp <= surrogateMax {
			return "", ErrInvalidGrammar("surrogate reference U+" + in[i+2:i+2+n])
		}
		if !droppedCodepoint(cp) {
			enc, err := EncodeCodepoint(cp)
			if err != nil {
				return "", ErrInvalidGrammar(err.Error())
			}
			out = append(out, enc...)
		}
		i += 1 + n
	}
	return string(out), nil
}
