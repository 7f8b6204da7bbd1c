package id

import (
	"fmt"
	"strconv"
	"strings"
)

// Width is the length of a declaration identifier.
const Width = 13

// FormatDeclarationID returns a declaration id like "7200000000001": the
// form prefix followed by the zero-padded sequence.
func FormatDeclarationID(prefix string, seq int) (string, error) {
	if prefix == "" || strings.TrimFunc(prefix, isDigit) != "" {
		return "", fmt.Errorf("declaration id prefix %q must be digits", prefix)
	}
	if seq < 1 {
		return "", fmt.Errorf("declaration sequence %d must be positive", seq)
	}
	digits := Width - len(prefix)
	s := strconv.Itoa(seq)
	if len(s) > digits {
		return "", fmt.Errorf("declaration sequence %d does not fit %d digits after prefix %q", seq, digits, prefix)
	}
	return prefix + strings.Repeat("0", digits-len(s)) + s, nil
}

// ParseDeclarationID splits "7200000000001" into its sequence, given the
// prefix it was formatted with.
func ParseDeclarationID(id, prefix string) (int, error) {
	if len(id) != Width {
		return 0, fmt.Errorf("invalid declaration ID %q: want %d digits", id, Width)
	}
	if !strings.HasPrefix(id, prefix) {
		return 0, fmt.Errorf("declaration ID %q does not start with %q", id, prefix)
	}
	seq, err := strconv.Atoi(id[len(prefix):])
	if err != nil {
		return 0, fmt.Errorf("invalid sequence in declaration ID %q: %w", id, err)
	}
	if seq < 1 {
		return 0, fmt.Errorf("invalid sequence in declaration ID %q", id)
	}
	return seq, nil
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }
