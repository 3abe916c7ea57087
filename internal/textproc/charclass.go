package textproc

// The alphabet negation is computed against: printable ASCII plus tab,
// newline and carriage return. Negated classes are only meaningful
// relative to this set; characters outside it never appear in an
// expanded class. Callers are warned about this boundary in the API docs.
var classAlphabet = func() []byte {
	a := []byte{'\t', '\n', '\r'}
	for c := byte(0x20); c <= 0x7E; c++ {
		a = append(a, c)
	}
	return a
}()

// parseClassBody collects the members of a bracket-expression body into a
// byte membership table. Escaped ], -, ^, backslash, the usual control
// escapes, \xXX bytes, the \d \s \w shorthands, and inclusive ranges are
// supported. Range endpoints may themselves be escaped, so bodies emitted
// by renderClassBody parse back to the same set.
func parseClassBody(body string) [256]bool {
	var set [256]bool
	for i := 0; i < len(body); {
		if body[i] == '\\' && i+1 < len(body) {
			switch body[i+1] {
			case 'd':
				for c := '0'; c <= '9'; c++ {
					set[c] = true
				}
				i += 2
				continue
			case 's':
				for _, c := range []byte{' ', '\t', '\n', '\r', '\f'} {
					set[c] = true
				}
				i += 2
				continue
			case 'w':
				for c := 'a'; c <= 'z'; c++ {
					set[c] = true
				}
				for c := 'A'; c <= 'Z'; c++ {
					set[c] = true
				}
				for c := '0'; c <= '9'; c++ {
					set[c] = true
				}
				set['_'] = true
				i += 2
				continue
			case 'x':
				if _, ok := parseHex(body, i+2, 2); !ok {
					// A hex escape without two digits contributes nothing.
					i += 2
					continue
				}
			}
		}
		lo, next, _ := classAtom(body, i)
		if next < len(body) && body[next] == '-' && next+1 < len(body) {
			if hi, after, ok := classAtom(body, next+1); ok {
				for v := int(lo); v <= int(hi); v++ {
					set[byte(v)] = true
				}
				i = after
				continue
			}
		}
		set[lo] = true
		i = next
	}
	return set
}

// classAtom decodes the single-member atom starting at i: a literal byte,
// an escaped metacharacter, a control escape, or a \xXX byte. ok is false
// for atoms that cannot bound a range (the multi-member shorthands and a
// hex escape missing its digits).
func classAtom(body string, i int) (b byte, next int, ok bool) {
	if body[i] != '\\' || i+1 >= len(body) {
		return body[i], i + 1, true
	}
	switch body[i+1] {
	case 'r':
		return '\r', i + 2, true
	case 'n':
		return '\n', i + 2, true
	case 't':
		return '\t', i + 2, true
	case 'x':
		if v, hok := parseHex(body, i+2, 2); hok {
			return byte(v), i + 4, true
		}
		return 0, i + 2, false
	case 'd', 's', 'w':
		return 0, i, false
	default:
		return body[i+1], i + 2, true
	}
}

// negateClass computes the complement of a negated-class body against the
// fixed alphabet and renders it as a positive class body with adjacent
// members coalesced into ranges.
func negateClass(body string) string {
	excluded := parseClassBody(body)
	var members []byte
	for _, c := range classAlphabet {
		if !excluded[c] {
			members = append(members, c)
		}
	}
	return renderClassBody(members)
}

// renderClassBody emits class members in ascending byte order, folding
// runs of three or more consecutive values into start-end ranges.
func renderClassBody(members []byte) string {
	var out []byte
	for i := 0; i < len(members); {
		j := i
		for j+1 < len(members) && members[j+1] == members[j]+1 {
			j++
		}
		if j-i >= 2 {
			out = append(out, classChar(members[i])...)
			out = append(out, '-')
			out = append(out, classChar(members[j])...)
		} else {
			for k := i; k <= j; k++ {
				out = append(out, classChar(members[k])...)
			}
		}
		i = j + 1
	}
	return string(out)
}

// classChar renders one member, escaping class metacharacters so the
// emitted text parses back to the same set.
func classChar(c byte) []byte {
	switch c {
	case '\t':
		return []byte(`\t`)
	case '\n':
		return []byte(`\n`)
	case '\r':
		return []byte(`\r`)
	case '\\', ']', '-', '^':
		return []byte{'\\', c}
	default:
		return []byte{c}
	}
}

// findClassEnd returns the index of the ] closing the bracket expression
// that starts at open. Escaped characters are skipped; nested brackets
// are tolerated the way the grammar compiler tolerates them.
func findClassEnd(s string, open int) (int, error) {
	depth := 1
	for j := open + 1; j < len(s); {
		switch {
		case s[j] == '\\' && j+1 < len(s):
			j += 2
		case s[j] == '[':
			depth++
			j++
		case s[j] == ']':
			depth--
			if depth == 0 {
				return j, nil
			}
			j++
		default:
			j++
		}
	}
	return 0, ErrMalformedPattern("unterminated bracket expression")
}

// expandNegatedClasses rewrites every [^...] as the positive class
// matching its complement over the fixed alphabet. The grammar compiler
// has no native class negation, so this is the only rendition it accepts.
func expandNegatedClasses(in string) (string, error) {
	var out []byte
	for i := 0; i < len(in); i++ {
		if in[i] == '\\' && i+1 < len(in) {
			out = append(out, in[i], in[i+1])
			i++
			continue
		}
		if in[i] == '[' && i+1 < len(in) && in[i+1] == '^' {
			end, err := findClassEnd(in, i)
			if err != nil {
				return "", err
			}
			out = append(out, '[')
			out = append(out, negateClass(in[i+2:end])...)
			out = append(out, ']')
			i = end
			continue
		}
		out = append(out, in[i])
	}
	return string(out), nil
}
