package classfile

import (
	"fmt"
	"strings"
	"unicode/utf16"
)

// decodeModifiedUTF8 decodes the JVM "modified UTF-8" encoding: NUL is
// written as two bytes and supplementary characters as surrogate pairs of
// three-byte sequences.
func decodeModifiedUTF8(b []byte) (string, error) {
	ascii := true
	for _, c := range b {
		if c == 0 || c >= 0x80 {
			ascii = false
			break
		}
	}
	if ascii {
		return string(b), nil
	}

	var sb strings.Builder
	sb.Grow(len(b))
	var pending rune = -1 // unpaired high surrogate
	flush := func() {
		if pending >= 0 {
			sb.WriteRune(utf16.DecodeRune(pending, 0))
			pending = -1
		}
	}

	for i := 0; i < len(b); {
		c := b[i]
		var r rune
		switch {
		case c == 0:
			return "", fmt.Errorf("NUL byte at offset %d", i)
		case c < 0x80:
			r = rune(c)
			i++
		case c&0xE0 == 0xC0:
			if i+1 >= len(b) || b[i+1]&0xC0 != 0x80 {
				return "", fmt.Errorf("bad two-byte sequence at offset %d", i)
			}
			r = rune(c&0x1F)<<6 | rune(b[i+1]&0x3F)
			i += 2
		case c&0xF0 == 0xE0:
			if i+2 >= len(b) || b[i+1]&0xC0 != 0x80 || b[i+2]&0xC0 != 0x80 {
				return "", fmt.Errorf("bad three-byte sequence at offset %d", i)
			}
			r = rune(c&0x0F)<<12 | rune(b[i+1]&0x3F)<<6 | rune(b[i+2]&0x3F)
			i += 3
		default:
			return "", fmt.Errorf("invalid byte 0x%02X at offset %d", c, i)
		}

		if utf16.IsSurrogate(r) {
			if r < 0xDC00 {
				flush()
				pending = r
				continue
			}
			if pending >= 0 {
				sb.WriteRune(utf16.DecodeRune(pending, r))
				pending = -1
				continue
			}
			sb.WriteRune(utf16.DecodeRune(r, 0))
			continue
		}
		flush()
		sb.WriteRune(r)
	}
	flush()
	return sb.String(), nil
}
