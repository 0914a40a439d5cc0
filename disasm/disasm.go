// Package disasm provides a read-only listing formatter over the TAM
// instruction encoding.
package disasm

import (
	"fmt"
	"io"
	"strings"

	"github.com/nottsknight/triangle-abstract-machine/insts"
)

// Fprint writes a disassembly listing of the given instruction words, one
// line per word in the form "addr: mnemonic operands".
func Fprint(w io.Writer, words []uint32) error {
	for addr, word := range words {
		if _, err := fmt.Fprintf(w, "%04x: %s\n", addr, insts.Decode(word)); err != nil {
			return err
		}
	}
	return nil
}

// Sprint returns the disassembly listing of the given instruction words.
func Sprint(words []uint32) string {
	var sb strings.Builder
	_ = Fprint(&sb, words)
	return sb.String()
}
