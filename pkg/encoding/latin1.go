// Package encoding provides text encoding utilities for strings embedded in sector files.
//
// The game stores resource paths as single-byte Latin-1 text.
package encoding

import (
	"bytes"

	xencoding "golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Latin1ToUTF8 converts ISO-8859-1 encoded bytes to a UTF-8 string.
// Returns the original bytes as a string if conversion fails.
func Latin1ToUTF8(data []byte) string {
	result, _, err := transform.Bytes(charmap.ISO8859_1.NewDecoder(), data)
	if err != nil {
		return string(data)
	}
	return string(result)
}

// Windows1252ToUTF8 converts Windows-1252 encoded bytes to a UTF-8 string.
// Some tool-exported sectors use the Windows code page instead of plain Latin-1.
func Windows1252ToUTF8(data []byte) string {
	result, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), data)
	if err != nil {
		return string(data)
	}
	return string(result)
}

// DecodeText converts single-byte text to UTF-8. Bytes 0x80-0x9F are control codes in
// Latin-1 but printable in Windows-1252, so their presence selects the Windows code page.
func DecodeText(data []byte) string {
	for _, b := range data {
		if b >= 0x80 && b <= 0x9F {
			return Windows1252ToUTF8(data)
		}
	}
	return Latin1ToUTF8(data)
}

// UTF8ToLatin1 converts a UTF-8 string to ISO-8859-1 bytes.
// Characters outside Latin-1 are replaced by the encoder's substitute byte.
func UTF8ToLatin1(s string) []byte {
	enc := xencoding.ReplaceUnsupported(charmap.ISO8859_1.NewEncoder())
	result, _, err := transform.Bytes(enc, []byte(s))
	if err != nil {
		return []byte(s)
	}
	return result
}

// FixedStringToUTF8 converts a NUL-terminated single-byte field to a UTF-8 string.
func FixedStringToUTF8(data []byte) string {
	if i := bytes.IndexByte(data, 0); i >= 0 {
		data = data[:i]
	}
	return DecodeText(data)
}

// UTF8ToFixedString encodes s as Latin-1 into a NUL-padded field of the given size.
func UTF8ToFixedString(s string, size int) []byte {
	result := make([]byte, size)
	copy(result, UTF8ToLatin1(s))
	return result
}
