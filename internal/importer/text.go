package importer

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

var utf8BOM = []byte("\xef\xbb\xbf")

// decodeText returns data as UTF-8. Exports saved by spreadsheet tools on
// Windows arrive as Windows-1252; anything that is not valid UTF-8 is read
// that way.
func decodeText(data []byte) ([]byte, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return data, nil
	}
	return charmap.Windows1252.NewDecoder().Bytes(data)
}

// onlyFirst reports whether rec has a non-empty first cell and nothing else.
func onlyFirst(rec []string) bool {
	if len(rec) == 0 || trimmed(rec[0]) == "" {
		return false
	}
	for _, c := range rec[1:] {
		if trimmed(c) != "" {
			return false
		}
	}
	return true
}

func trimmed(s string) string { return strings.TrimSpace(s) }

func cellAt(rec []string, i int) string {
	if i < len(rec) {
		return rec[i]
	}
	return ""
}
