package textproc

// maxCodepoint is the last Unicode scalar value.
const maxCodepoint = 0x10FFFF

// Surrogate block; codepoints in this range have no standalone encoding.
const (
	surrogateMin = 0xD800
	surrogateMax = 0xDFFF
)

// EncodeCodepoint converts a Unicode scalar value into its UTF-8 byte
// sequence. It fails for values beyond U+10FFFF and for surrogates.
func EncodeCodepoint(cp uint32) (string, error) {
	if cp > maxCodepoint || (cp >= surrogateMin && cp <= surrogateMax) {
		return "", ErrInvalidCodepoint(cp)
	}
	switch {
	case cp <= 0x7F:
		return string([]byte{byte(cp)}), nil
	case cp <= 0x7FF:
		return string([]byte{
			0xC0 | byte(cp>>6),
			0x80 | byte(cp&0x3F),
		}), nil
	case cp <= 0xFFFF:
		return string([]byte{
			0xE0 | byte(cp>>12),
			0x80 | byte(cp>>6&0x3F),
			0x80 | byte(cp&0x3F),
		}), nil
	default:
		return string([]byte{
			0xF0 | byte(cp>>18),
			0x80 | byte(cp>>12&0x3F),
			0x80 | byte(cp>>6&0x3F),
			0x80 | byte(cp&0x3F),
		}), nil
	}
}
