// Package emu provides functional TAM emulation.
//
// The Machine owns a fixed-size code store, a shared stack/heap data store,
// and a bank of sixteen addressing registers. Run drives the
// fetch-decode-execute loop until the program halts or a trap aborts it.
package emu

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/nottsknight/triangle-abstract-machine/insts"
)

// Machine executes TAM bytecode.
type Machine struct {
	regs RegFile
	mem  *Memory

	// I/O
	stdin    *bufio.Reader
	stdout   io.Writer
	traceOut io.Writer

	trace bool

	// fault records a mid-instruction stack underflow so the current
	// instruction can be aborted against the right code address.
	fault error
}

// Option is a functional option for configuring the Machine.
type Option func(*Machine)

// WithTrace enables printing each instruction and the live stack before it
// executes.
func WithTrace() Option {
	return func(m *Machine) {
		m.trace = true
	}
}

// WithStdin sets the reader used by the input primitives.
func WithStdin(r io.Reader) Option {
	return func(m *Machine) {
		m.stdin = bufio.NewReader(r)
	}
}

// WithStdout sets the writer used by the output primitives.
func WithStdout(w io.Writer) Option {
	return func(m *Machine) {
		m.stdout = w
	}
}

// WithTraceOutput sets the writer that receives trace lines.
func WithTraceOutput(w io.Writer) Option {
	return func(m *Machine) {
		m.traceOut = w
	}
}

// NewMachine creates a new TAM machine with empty stores and the fixed
// initial register layout.
func NewMachine(opts ...Option) *Machine {
	m := &Machine{
		mem:      NewMemory(),
		stdout:   os.Stdout,
		traceOut: os.Stdout,
	}
	m.regs.Reset()

	for _, opt := range opts {
		opt(m)
	}

	if m.stdin == nil {
		m.stdin = bufio.NewReader(os.Stdin)
	}
	return m
}

// Registers returns the machine's register file.
func (m *Machine) Registers() *RegFile {
	return &m.regs
}

// Memory returns the machine's memory.
func (m *Machine) Memory() *Memory {
	return m.mem
}

// LoadProgram loads bytecode into the code store. The input is a headerless
// stream of big-endian 32-bit instruction words; trailing bytes smaller
// than a word are discarded. CT is set to the number of words loaded.
func (m *Machine) LoadProgram(program []byte) {
	m.regs[CT] = m.mem.LoadProgram(program)
}

// LoadWords loads already-decoded instruction words into the code store and
// sets CT to their count.
func (m *Machine) LoadWords(words []uint32) {
	m.regs[CT] = m.mem.LoadWords(words)
}

// Run executes the loaded program from address 0 until it halts or traps.
// The data store and the stack/heap registers are reset first. On a trap
// the register state is left intact for inspection and the trap is
// returned; the machine may be reloaded and re-run afterwards.
func (m *Machine) Run() error {
	m.mem.ResetData()
	m.regs[CP] = 0
	m.regs[ST] = 0
	m.regs[SB] = 0
	m.regs[LB] = 0
	m.regs[HT] = MemSize - 1
	m.regs[HB] = MemSize - 1

	for {
		done, err := m.Step()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// Step fetches, decodes, and executes a single instruction. It returns true
// when the instruction was HALT.
func (m *Machine) Step() (bool, error) {
	inst, err := m.fetchDecode()
	if err != nil {
		return false, err
	}

	if m.trace {
		m.printTrace(inst)
	}

	if inst.Op == insts.OpHALT {
		return true, nil
	}
	return false, m.execute(inst)
}

// fetchDecode reads the word at CP, advances CP, and decodes it.
func (m *Machine) fetchDecode() (insts.Instruction, error) {
	if m.regs[CP] < 0 || m.regs[CP] >= MemSize {
		return insts.Instruction{}, &SegmentationFault{Loc: m.regs[CP], Addr: m.regs[CP]}
	}

	word := m.mem.code[m.regs[CP]]
	m.regs[CP]++
	return insts.Decode(word), nil
}

func (m *Machine) printTrace(inst insts.Instruction) {
	fmt.Fprintf(m.traceOut, "%08x: %s\n", m.regs[CP]-1, inst)
	fmt.Fprintf(m.traceOut, "%v\n", m.mem.data[:m.regs[ST]])
	fmt.Fprintf(m.traceOut, "SB[%x] LB[%x] ST[%x]\n", m.regs[SB], m.regs[LB], m.regs[ST])
}

func (m *Machine) printFrameTrace() {
	fmt.Fprintf(m.traceOut, "          slnk: %08x\n", m.mem.data[m.regs[LB]])
	fmt.Fprintf(m.traceOut, "          dlnk: %08x\n", m.mem.data[m.regs[LB]+1])
	fmt.Fprintf(m.traceOut, "          radr: %08x\n", m.mem.data[m.regs[LB]+2])
}
