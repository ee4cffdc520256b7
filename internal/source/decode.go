package source

import (
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DecodeText converts fetched bytes to text. A UTF-8 or UTF-16 byte order
// mark selects the matching decoding; otherwise the bytes are read as UTF-8.
// Invalid byte sequences are dropped rather than failing the read.
func DecodeText(raw []byte) string {
	decoded, _, err := transform.Bytes(unicode.BOMOverride(transform.Nop), raw)
	if err != nil {
		decoded = raw
	}
	return strings.ToValidUTF8(string(decoded), "")
}
