package textproc

import (
	"strings"
	"testing"
)

func TestPreprocessPattern(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain text", `hello world`, `hello world`},
		{"escapes to literal", `\u0041\u0042`, `AB`},
		{"hex escapes", `\x41+\x42*`, `A+B*`},
		{"malformed escapes untouched", `\uZZZZ\x1`, `\uZZZZ\x1`},
		{"positive class untouched", `[a-z]+`, `[a-z]+`},
		{"negated class expanded", `[^a]`, "[\\t\\n\\r -`b-~]"},
		{"negation after decoding", `[^\x41-\x5a]`, "[\\t\\n\\r -@[-~]"},
		{"escaped open bracket untouched", `\[^a]`, `\[^a]`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := PreprocessPattern(c.in)
			if err != nil {
				t.Fatalf("preprocess %q: %v", c.in, err)
			}
			if got != c.want {
				t.Fatalf("preprocess %q: expected %q got %q", c.in, c.want, got)
			}
		})
	}
}

func TestPreprocessPatternExpandedClassExcludesMembers(t *testing.T) {
	got, err := PreprocessPattern(`[^a]`)
	if err != nil {
		t.Fatalf("preprocess: %v", err)
	}
	if !strings.HasPrefix(got, "[") || !strings.HasSuffix(got, "]") {
		t.Fatalf("expected bracketed class, got %q", got)
	}
	set := parseClassBody(got[1 : len(got)-1])
	if set['a'] {
		t.Fatalf("negated member leaked into expansion: %q", got)
	}
	for _, c := range classAlphabet {
		if c == 'a' {
			continue
		}
		if !set[c] {
			t.Fatalf("alphabet member 0x%02X missing from expansion %q", c, got)
		}
	}
}

func TestPreprocessPatternErrors(t *testing.T) {
	if _, err := PreprocessPattern(`[^abc`); !IsMalformedPattern(err) {
		t.Fatalf("unterminated class: expected malformed pattern, got %v", err)
	}
	if _, err := PreprocessPattern(`\ud800`); !IsInvalidGrammar(err) {
		t.Fatalf("surrogate: expected invalid grammar, got %v", err)
	}
}

func TestPreprocessPatternIdempotentOnNormalized(t *testing.T) {
	inputs := []string{`[^a]`, `[^0-9]`, `A[^x]`, `[^0-9_]`, `[^,]`}
	for _, in := range inputs {
		once, err := PreprocessPattern(in)
		if err != nil {
			t.Fatalf("preprocess %q: %v", in, err)
		}
		twice, err := PreprocessPattern(once)
		if err != nil {
			t.Fatalf("re-preprocess %q: %v", once, err)
		}
		if twice != once {
			t.Fatalf("%q not stable: %q then %q", in, once, twice)
		}
	}
}
