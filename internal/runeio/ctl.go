// Package runeio renders device character codes as host terminal text.
package runeio

import (
	"io"
	"unicode/utf8"
)

// CaretForm computes the ^-escaped printable form of a C0 control rune, or
// the ^[-escaped form of a C1 control rune; it returns "" for any other rune.
func CaretForm(r rune) string {
	if r < 0x20 || r == 0x7f {
		return "^" + string(r^0x40)
	} else if 0x80 <= r && r <= 0x9f {
		return "^[" + string(r^0xc0)
	}
	return ""
}

// WriteVisibleRune writes r to w in utf8 form, except that control runes
// other than line feed are written in caret form, so that device text can
// never drive the host terminal.
func WriteVisibleRune(w io.Writer, r rune) (int, error) {
	if r != '\n' {
		if caret := CaretForm(r); caret != "" {
			if sw, ok := w.(io.StringWriter); ok {
				return sw.WriteString(caret)
			}
			return w.Write([]byte(caret))
		}
	}
	if r < utf8.RuneSelf {
		if bw, ok := w.(io.ByteWriter); ok {
			return 1, bw.WriteByte(byte(r))
		}
		return w.Write([]byte{byte(r)})
	}
	var buf [utf8.UTFMax]byte
	return w.Write(buf[:utf8.EncodeRune(buf[:], r)])
}
