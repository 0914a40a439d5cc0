// Package emu provides functional TAM emulation.
package emu

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Primitive displacements. A program invokes primitive k by issuing
// CALL n, [PB+k]; the n field is ignored. The set is closed and versioned
// together with the bytecode format.
const (
	PrimID     = 1
	PrimNot    = 2
	PrimAnd    = 3
	PrimOr     = 4
	PrimSucc   = 5
	PrimPred   = 6
	PrimNeg    = 7
	PrimAdd    = 8
	PrimSub    = 9
	PrimMul    = 10
	PrimDiv    = 11
	PrimMod    = 12
	PrimLt     = 13
	PrimLe     = 14
	PrimGe     = 15
	PrimGt     = 16
	PrimEq     = 17
	PrimNe     = 18
	PrimEol    = 19
	PrimEof    = 20
	PrimGet    = 21
	PrimPut    = 22
	PrimGeteol = 23
	PrimPuteol = 24
	PrimGetint = 25
	PrimPutint = 26
	PrimNew    = 27
)

// NumPrimitives is one past the highest primitive displacement.
const NumPrimitives = 28

// callPrimitive dispatches a primitive call. No activation frame is
// created; control continues at the next sequential instruction.
//
// All primitives consume and produce signed 16-bit values. Arithmetic
// wraps on overflow; boolean results are normalised to 0 or 1. Note that
// and/or decide via the product and sum of their operands, which misreads
// operands outside {0, 1} (e.g. or(1, -1) yields 0); this quirk is part of
// the primitive contract and is preserved literally.
func (m *Machine) callPrimitive(off int16) error {
	switch off {
	case PrimID:
		m.pushData(m.popData())
	case PrimNot:
		v := m.popData()
		m.pushData(boolCell(v == 0))
	case PrimAnd:
		t2 := m.popData()
		t1 := m.popData()
		m.pushData(boolCell(t1*t2 != 0))
	case PrimOr:
		t2 := m.popData()
		t1 := m.popData()
		m.pushData(boolCell(t1+t2 != 0))
	case PrimSucc:
		m.pushData(m.popData() + 1)
	case PrimPred:
		m.pushData(m.popData() - 1)
	case PrimNeg:
		m.pushData(-m.popData())
	case PrimAdd:
		t2 := m.popData()
		t1 := m.popData()
		m.pushData(t1 + t2)
	case PrimSub:
		t2 := m.popData()
		t1 := m.popData()
		m.pushData(t1 - t2)
	case PrimMul:
		t2 := m.popData()
		t1 := m.popData()
		m.pushData(t1 * t2)
	case PrimDiv:
		return m.primDiv()
	case PrimMod:
		return m.primMod()
	case PrimLt:
		t2 := m.popData()
		t1 := m.popData()
		m.pushData(boolCell(t1 < t2))
	case PrimLe:
		t2 := m.popData()
		t1 := m.popData()
		m.pushData(boolCell(t1 <= t2))
	case PrimGe:
		t2 := m.popData()
		t1 := m.popData()
		m.pushData(boolCell(t1 >= t2))
	case PrimGt:
		t2 := m.popData()
		t1 := m.popData()
		m.pushData(boolCell(t1 > t2))
	case PrimEq:
		t2 := m.popData()
		t1 := m.popData()
		m.pushData(boolCell(t1 == t2))
	case PrimNe:
		t2 := m.popData()
		t1 := m.popData()
		m.pushData(boolCell(t1 != t2))
	case PrimEol:
		return fmt.Errorf("eol: %w", ErrUnimplementedPrimitive)
	case PrimEof:
		return fmt.Errorf("eof: %w", ErrUnimplementedPrimitive)
	case PrimGet:
		return m.primGet()
	case PrimPut:
		v := m.popData()
		if _, err := m.stdout.Write([]byte{byte(uint16(v))}); err != nil {
			return fmt.Errorf("put: %w", err)
		}
	case PrimGeteol:
		return m.primGeteol()
	case PrimPuteol:
		if _, err := io.WriteString(m.stdout, "\n"); err != nil {
			return fmt.Errorf("puteol: %w", err)
		}
	case PrimGetint:
		return m.primGetint()
	case PrimPutint:
		if _, err := fmt.Fprintf(m.stdout, "%d", m.popData()); err != nil {
			return fmt.Errorf("putint: %w", err)
		}
	case PrimNew:
		return m.primNew()
	}
	return nil
}

func boolCell(b bool) int16 {
	if b {
		return 1
	}
	return 0
}

// primDiv pops the divisor first so a zero divisor traps before the
// dividend is consumed. The quotient truncates toward zero and wraps on
// the single overflowing case.
func (m *Machine) primDiv() error {
	t2 := m.popData()
	if t2 == 0 {
		return &DivideByZero{Loc: m.regs[CP] - 1}
	}
	t1 := m.popData()
	m.pushData(t1 / t2)
	return nil
}

// primMod follows the dividend's sign, as Go's % does.
func (m *Machine) primMod() error {
	t2 := m.popData()
	if t2 == 0 {
		return &DivideByZero{Loc: m.regs[CP] - 1}
	}
	t1 := m.popData()
	m.pushData(t1 % t2)
	return nil
}

// primGet reads one byte from stdin and stores it at the popped address.
func (m *Machine) primGet() error {
	b, err := m.stdin.ReadByte()
	if err != nil {
		return fmt.Errorf("get: %w", err)
	}

	addr := dataAddr(m.popData())
	if err := m.checkDataAddr(addr); err != nil {
		return err
	}
	m.mem.data[addr] = int16(b)
	return nil
}

// primGeteol reads and discards input up to and including the next newline.
func (m *Machine) primGeteol() error {
	if _, err := m.stdin.ReadString('\n'); err != nil && err != io.EOF {
		return fmt.Errorf("geteol: %w", err)
	}
	return nil
}

// primGetint reads a line, parses it as a signed 16-bit integer, and stores
// it at the popped address. Unparseable input is a host error, not a trap.
func (m *Machine) primGetint() error {
	line, err := m.stdin.ReadString('\n')
	if err != nil && err != io.EOF {
		return fmt.Errorf("getint: %w", err)
	}

	val, err := strconv.ParseInt(strings.TrimSpace(line), 10, 16)
	if err != nil {
		return fmt.Errorf("getint: %w", err)
	}

	addr := dataAddr(m.popData())
	if err := m.checkDataAddr(addr); err != nil {
		return err
	}
	m.mem.data[addr] = int16(val)
	return nil
}

// primNew carves n cells off the heap by lowering HT and pushes the first
// address of the new block. HT itself stays the frontier, so the block
// starts at HT+1.
func (m *Machine) primNew() error {
	n := int(m.popData())
	m.regs[HT] -= n
	m.pushData(int16(m.regs[HT] + 1))
	return m.checkStack()
}
