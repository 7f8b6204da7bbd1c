package layout

import (
	"fmt"
	"hash/adler32"
	"hash/crc32"
	"math/big"
	"sort"
)

type checksum struct {
	minWidth int // 0 when no trailer field is needed
	sum      func(data []byte, width int) string
}

var checksums = map[string]checksum{
	"crc32": {8, func(data []byte, width int) string {
		return fmt.Sprintf("%0*X", width, crc32.ChecksumIEEE(data))
	}},
	"adler32": {8, func(data []byte, width int) string {
		return fmt.Sprintf("%0*X", width, adler32.Checksum(data))
	}},
	// Byte sum modulo 10^width, in decimal.
	"sum": {1, func(data []byte, width int) string {
		total := new(big.Int)
		for _, b := range data {
			total.Add(total, big.NewInt(int64(b)))
		}
		mod := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(width)), nil)
		return fmt.Sprintf("%0*d", width, total.Mod(total, mod))
	}},
	"none": {0, func([]byte, int) string { return "" }},
}

func checksumNames() []string {
	out := make([]string, 0, len(checksums))
	for k := range checksums {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
