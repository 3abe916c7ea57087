package textproc

// Escapes the downstream grammar compiler cannot digest. Unicode line and
// paragraph separators are dropped outright; so are VT, FF and NEL.
func droppedCodepoint(cp uint32) bool {
	return cp == 0x2028 || cp == 0x2029
}

func droppedByte(v uint32) bool {
	return v == 0x0B || v == 0x0C || v == 0x85
}

// decodeEscapes rewrites \uXXXX and \xXX escape sequences as literal UTF-8
// text. Malformed escapes (wrong digit count, non-hex digit) are copied
// through untouched; only surrogate codepoints fail, since they have no
// standalone encoding.
func decodeEscapes(in string) (string, error) {
	var out []byte
	for i := 0; i < len(in); i++ {
		if in[i] != '\\' || i+1 >= len(in) {
			out = append(out, in[i])
			continue
		}
		switch in[i+1] {
		case 'u':
			cp, ok := parseHex(in, i+2, 4)
			if !ok {
				out = append(out, in[i])
				continue
			}
			if cp >= surrogateMin && cp <= surrogateMax {
				return "", ErrInvalidGrammar("surrogate escape \\u" + in[i+2:i+6])
			}
			if !droppedCodepoint(cp) {
				enc, err := EncodeCodepoint(cp)
				if err != nil {
					return "", err
				}
				out = append(out, enc...)
			}
			i += 5
		case 'x':
			v, ok := parseHex(in, i+2, 2)
			if !ok {
				out = append(out, in[i])
				continue
			}
			if !droppedByte(v) {
				out = append(out, byte(v))
			}
			i += 3
		default:
			out = append(out, in[i])
		}
	}
	return string(out), nil
}

// parseHex reads exactly n hex digits starting at off.
func parseHex(s string, off, n int) (uint32, bool) {
	if off+n > len(s) {
		return 0, false
	}
	var v uint32
	for i := off; i < off+n; i++ {
		d := hexDigit(s[i])
		if d < 0 {
			return 0, false
		}
		v = v<<4 | uint32(d)
	}
	return v, true
}

func hexDigit(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	default:
		return -1
	}
}
