package layout

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

var charsets = map[string]*charmap.Charmap{
	"iso-8859-1":   charmap.ISO8859_1,
	"latin1":       charmap.ISO8859_1,
	"iso-8859-15":  charmap.ISO8859_15,
	"windows-1252": charmap.Windows1252,
}

// encoderFor returns the encoder of a charset name. UTF-8 has no encoder.
func encoderFor(name string) (*encoding.Encoder, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	switch n {
	case "", "iso-8859-1", "latin1", "iso-8859-15", "windows-1252":
		if n == "" {
			n = "iso-8859-1"
		}
		return charsets[n].NewEncoder(), nil
	case "utf-8", "utf8":
		return nil, nil
	}
	return nil, fmt.Errorf("unsupported encoding %q", name)
}

// encode converts s, failing on characters the charset cannot represent.
func encode(enc *encoding.Encoder, s string) ([]byte, error) {
	if enc == nil {
		if !utf8.ValidString(s) {
			return nil, fmt.Errorf("invalid UTF-8")
		}
		return []byte(s), nil
	}
	for _, r := range s {
		if _, err := enc.String(string(r)); err != nil {
			return nil, fmt.Errorf("character %q cannot be encoded", r)
		}
	}
	out, err := enc.String(s)
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}
