// Package asm provides a two-pass assembler for TAM assembly source.
//
// The source format is line oriented: one instruction per line, with blank
// lines and ";" comments ignored. A line may carry a leading "name:" label
// naming the address of the instruction on that line (or of the next
// instruction, for a line holding only the label). Address operands are
// written [reg+d] or [reg-d]; call and jump targets may also be a label or,
// for call, the name of a built-in primitive.
package asm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nottsknight/triangle-abstract-machine/insts"
)

// operand shapes accepted by each mnemonic
const (
	formNone    = iota // halt, calli, jumpi
	formCount          // loadi n, storei n
	formLiteral        // loadl d, push d
	formAddress        // loada [reg+d]
	formCountAddress   // load n, [reg+d], store n, [reg+d]
	formCountPair      // return n, d and pop n, d
	formCall           // call [reg+d] | call n, [reg+d] | call label | call prim
	formJump           // jump [reg+d] | jump label
	formCondJump       // jumpif n, [reg+d] | jumpif n, label
)

type mnemonic struct {
	op   insts.Op
	form int
}

var mnemonics = map[string]mnemonic{
	"load":   {insts.OpLOAD, formCountAddress},
	"loada":  {insts.OpLOADA, formAddress},
	"loadi":  {insts.OpLOADI, formCount},
	"loadl":  {insts.OpLOADL, formLiteral},
	"store":  {insts.OpSTORE, formCountAddress},
	"storei": {insts.OpSTOREI, formCount},
	"call":   {insts.OpCALL, formCall},
	"calli":  {insts.OpCALLI, formNone},
	"return": {insts.OpRETURN, formCountPair},
	"push":   {insts.OpPUSH, formLiteral},
	"pop":    {insts.OpPOP, formCountPair},
	"jump":   {insts.OpJUMP, formJump},
	"jumpi":  {insts.OpJUMPI, formNone},
	"jumpif": {insts.OpJUMPIF, formCondJump},
	"halt":   {insts.OpHALT, formNone},
}

// primitives maps primitive names to their displacement from PB.
var primitives = map[string]int16{
	"id": 1, "not": 2, "and": 3, "or": 4,
	"succ": 5, "pred": 6, "neg": 7,
	"add": 8, "sub": 9, "mul": 10, "div": 11, "mod": 12,
	"lt": 13, "le": 14, "ge": 15, "gt": 16, "eq": 17, "ne": 18,
	"eol": 19, "eof": 20,
	"get": 21, "put": 22, "geteol": 23, "puteol": 24,
	"getint": 25, "putint": 26, "new": 27,
}

// line is one source instruction surviving the first pass.
type line struct {
	num      int    // 1-based source line number
	mnemonic string // lower-cased mnemonic
	operands string // raw operand text
}

// Assemble translates TAM assembly source into instruction words.
func Assemble(src string) ([]uint32, error) {
	lines, labels, err := firstPass(src)
	if err != nil {
		return nil, err
	}

	words := make([]uint32, 0, len(lines))
	for _, ln := range lines {
		inst, err := encodeLine(ln, labels)
		if err != nil {
			return nil, err
		}
		words = append(words, insts.Encode(inst))
	}
	return words, nil
}

// firstPass strips comments and labels, records each label's instruction
// index, and keeps the instruction-bearing lines for the second pass.
func firstPass(src string) ([]line, map[string]int, error) {
	var lines []line
	labels := make(map[string]int)

	for num, raw := range strings.Split(src, "\n") {
		text := raw
		if i := strings.IndexByte(text, ';'); i >= 0 {
			text = text[:i]
		}
		text = strings.TrimSpace(text)

		for {
			i := strings.IndexByte(text, ':')
			if i < 0 {
				break
			}
			name := strings.TrimSpace(text[:i])
			if !isIdent(name) {
				return nil, nil, fmt.Errorf("line %d: bad label %q", num+1, name)
			}
			if _, dup := labels[name]; dup {
				return nil, nil, fmt.Errorf("line %d: duplicate label %q", num+1, name)
			}
			labels[name] = len(lines)
			text = strings.TrimSpace(text[i+1:])
		}
		if text == "" {
			continue
		}

		mn, rest := text, ""
		if i := strings.IndexAny(text, " \t"); i >= 0 {
			mn, rest = text[:i], text[i+1:]
		}
		lines = append(lines, line{
			num:      num + 1,
			mnemonic: strings.ToLower(mn),
			operands: strings.TrimSpace(rest),
		})
	}
	return lines, labels, nil
}

func encodeLine(ln line, labels map[string]int) (insts.Instruction, error) {
	mn, ok := mnemonics[ln.mnemonic]
	if !ok {
		return insts.Instruction{}, fmt.Errorf("line %d: unknown mnemonic %q", ln.num, ln.mnemonic)
	}

	inst := insts.Instruction{Op: mn.op}
	var err error
	switch mn.form {
	case formNone:
		if ln.operands != "" {
			err = fmt.Errorf("line %d: %s takes no operands", ln.num, ln.mnemonic)
		}
	case formCount:
		inst.N, err = parseCount(ln, ln.operands)
	case formLiteral:
		inst.D, err = parseDisplacement(ln, ln.operands)
	case formAddress:
		inst.R, inst.D, err = parseAddress(ln, ln.operands)
	case formCountAddress:
		var rest string
		if inst.N, rest, err = splitCount(ln); err == nil {
			inst.R, inst.D, err = parseAddress(ln, rest)
		}
	case formCountPair:
		var rest string
		if inst.N, rest, err = splitCount(ln); err == nil {
			inst.D, err = parseDisplacement(ln, rest)
		}
	case formCall:
		err = parseCallOperands(ln, labels, &inst)
	case formJump:
		inst.R, inst.D, err = parseTarget(ln, ln.operands, labels)
	case formCondJump:
		var rest string
		if inst.N, rest, err = splitCount(ln); err == nil {
			inst.R, inst.D, err = parseTarget(ln, rest, labels)
		}
	}
	if err != nil {
		return insts.Instruction{}, err
	}
	return inst, nil
}

// splitCount consumes the leading "n," operand.
func splitCount(ln line) (uint8, string, error) {
	head, rest, found := strings.Cut(ln.operands, ",")
	if !found {
		return 0, "", fmt.Errorf("line %d: %s wants two operands", ln.num, ln.mnemonic)
	}
	n, err := parseCount(ln, strings.TrimSpace(head))
	return n, strings.TrimSpace(rest), err
}

func parseCount(ln line, s string) (uint8, error) {
	v, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("line %d: bad count %q", ln.num, s)
	}
	return uint8(v), nil
}

func parseDisplacement(ln line, s string) (int16, error) {
	v, err := strconv.ParseInt(s, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("line %d: bad displacement %q", ln.num, s)
	}
	return int16(v), nil
}

// parseAddress parses a [reg+d] operand. The displacement may be omitted
// ([sb]) or negative ([lb-2]).
func parseAddress(ln line, s string) (uint8, int16, error) {
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return 0, 0, fmt.Errorf("line %d: bad address %q", ln.num, s)
	}
	body := strings.TrimSpace(s[1 : len(s)-1])

	split := strings.IndexAny(body, "+-")
	regName, disp := body, ""
	if split >= 0 {
		regName, disp = body[:split], body[split:]
	}

	r, ok := insts.RegisterIndex(strings.ToLower(strings.TrimSpace(regName)))
	if !ok {
		return 0, 0, fmt.Errorf("line %d: unknown register %q", ln.num, regName)
	}
	if disp == "" {
		return r, 0, nil
	}

	d, err := strconv.ParseInt(strings.TrimSpace(strings.TrimPrefix(disp, "+")), 10, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("line %d: bad displacement %q", ln.num, disp)
	}
	return r, int16(d), nil
}

// parseTarget accepts either a [reg+d] operand or a label. Labels resolve
// to an absolute code address relative to CB, the same rewrite the original
// back end performs.
func parseTarget(ln line, s string, labels map[string]int) (uint8, int16, error) {
	if strings.HasPrefix(s, "[") {
		return parseAddress(ln, s)
	}

	addr, ok := labels[s]
	if !ok {
		return 0, 0, fmt.Errorf("line %d: use of undefined location %q", ln.num, s)
	}
	cb, _ := insts.RegisterIndex("cb")
	return cb, int16(addr), nil
}

// parseCallOperands handles the call forms: a primitive name, a label, a
// bare [reg+d] target, or any of those preceded by the static-link
// register operand. A label defined in the source takes precedence over a
// primitive of the same name.
func parseCallOperands(ln line, labels map[string]int, inst *insts.Instruction) error {
	operands := ln.operands
	if head, rest, found := strings.Cut(operands, ","); found {
		head = strings.TrimSpace(head)
		if n, err := strconv.ParseUint(head, 10, 8); err == nil {
			inst.N = uint8(n)
		} else if r, ok := insts.RegisterIndex(strings.ToLower(head)); ok {
			inst.N = r
		} else {
			return fmt.Errorf("line %d: bad static-link operand %q", ln.num, head)
		}
		operands = strings.TrimSpace(rest)
	}

	if _, isLabel := labels[operands]; !isLabel {
		if k, ok := primitives[strings.ToLower(operands)]; ok {
			pb, _ := insts.RegisterIndex("pb")
			inst.R = pb
			inst.D = k
			return nil
		}
	}

	r, d, err := parseTarget(ln, operands, labels)
	if err != nil {
		return err
	}
	inst.R = r
	inst.D = d
	return nil
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_':
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
