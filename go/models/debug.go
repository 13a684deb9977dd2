package models

import (
	"encoding/hex"
	"fmt"
	"strings"
)

func printable(b byte) bool { return b >= 0x20 && b <= 0x7e }

// Repr quotes p with non-printable bytes escaped as \xNN.
// If strsize > 0 and the quoted body is longer, it is cut to strsize-3 and marked with "...".
func Repr(p []byte, strsize int) string {
	parts := make([]string, len(p))
	total := 0
	for i, b := range p {
		if printable(b) {
			parts[i] = string(b)
		} else {
			parts[i] = fmt.Sprintf("\\x%02x", b)
		}
		total += len(parts[i])
	}
	if strsize <= 0 || total <= strsize {
		return `"` + strings.Join(parts, "") + `"`
	}
	// escapes are never split
	n := 0
	for i, part := range parts {
		if n+len(part) > strsize-3 {
			parts = parts[:i]
			break
		}
		n += len(part)
	}
	return `"` + strings.Join(parts, "") + `"...`
}

const dumpRow = 16

// HexDump formats mem as 16-byte rows of target words in memory order, with printable characters on the right.
func HexDump(base uint64, mem []byte, bits int) []string {
	word := bits / 8
	var out []string
	for off := 0; off < len(mem); off += dumpRow {
		row := mem[off:min(off+dumpRow, len(mem))]
		words := make([]string, 0, dumpRow/word)
		text := make([]string, 0, dumpRow/word)
		for i := 0; i < dumpRow; i += word {
			if i >= len(row) {
				words = append(words, strings.Repeat(" ", word*2))
				text = append(text, strings.Repeat(" ", word))
				continue
			}
			chunk := row[i:min(i+word, len(row))]
			ascii := make([]byte, len(chunk))
			for j, c := range chunk {
				ascii[j] = '.'
				if printable(c) {
					ascii[j] = c
				}
			}
			pad := word - len(chunk)
			words = append(words, hex.EncodeToString(chunk)+strings.Repeat("  ", pad))
			text = append(text, string(ascii)+strings.Repeat(" ", pad))
		}
		out = append(out, fmt.Sprintf("%#0*x: %s [%s]", word*2, base+uint64(off), strings.Join(words, " "), strings.Join(text, " ")))
	}
	return out
}
