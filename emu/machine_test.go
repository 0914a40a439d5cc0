package emu_test

import (
	"bytes"
	"encoding/binary"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nottsknight/triangle-abstract-machine/emu"
	"github.com/nottsknight/triangle-abstract-machine/insts"
)

// program encodes a sequence of instructions into code words.
func program(list ...insts.Instruction) []uint32 {
	words := make([]uint32, len(list))
	for i, inst := range list {
		words[i] = insts.Encode(inst)
	}
	return words
}

var _ = Describe("Machine", func() {
	var m *emu.Machine

	BeforeEach(func() {
		m = emu.NewMachine()
	})

	Describe("NewMachine", func() {
		It("should fix the initial register layout", func() {
			regs := m.Registers()

			Expect(regs[emu.CB]).To(Equal(0))
			Expect(regs[emu.PB]).To(Equal(emu.MemSize - 29))
			Expect(regs[emu.PT]).To(Equal(emu.MemSize - 1))
			Expect(regs[emu.SB]).To(Equal(0))
			Expect(regs[emu.HB]).To(Equal(emu.MemSize - 1))
			Expect(regs[emu.HT]).To(Equal(emu.MemSize - 1))
		})
	})

	Describe("LoadProgram", func() {
		It("should load big-endian words and set CT", func() {
			m.LoadProgram([]byte{0xF0, 0x00, 0x00, 0x00, 0x30, 0x00, 0x00, 0x07})

			Expect(m.Registers()[emu.CT]).To(Equal(2))
			Expect(m.Memory().Word(0)).To(Equal(uint32(0xF0000000)))
			Expect(m.Memory().Word(1)).To(Equal(uint32(0x30000007)))
		})

		It("should discard trailing bytes smaller than a word", func() {
			m.LoadProgram([]byte{0xF0, 0x00, 0x00, 0x00, 0xDE, 0xAD})

			Expect(m.Registers()[emu.CT]).To(Equal(1))
			Expect(m.Memory().Word(1)).To(Equal(uint32(0)))
		})

		It("should zero-clear the code store before loading", func() {
			m.LoadProgram([]byte{0xF0, 0x00, 0x00, 0x00, 0xF0, 0x00, 0x00, 0x00})
			m.LoadProgram([]byte{0x30, 0x00, 0x00, 0x01})

			Expect(m.Registers()[emu.CT]).To(Equal(1))
			Expect(m.Memory().Word(1)).To(Equal(uint32(0)))
		})

		It("should accept the wire format produced by encoding", func() {
			var buf bytes.Buffer
			word := insts.Encode(insts.Instruction{Op: insts.OpHALT})
			Expect(binary.Write(&buf, binary.BigEndian, word)).To(Succeed())

			m.LoadProgram(buf.Bytes())

			Expect(m.Registers()[emu.CT]).To(Equal(1))
			Expect(m.Memory().Word(0)).To(Equal(uint32(0xF0000000)))
		})
	})

	Describe("Run", func() {
		It("should execute a halt-only program", func() {
			m.LoadWords([]uint32{0xF0000000})

			Expect(m.Run()).To(Succeed())
			Expect(m.Registers()[emu.CP]).To(Equal(1))
			Expect(m.Registers()[emu.ST]).To(Equal(0))
		})

		It("should push two literals and add them", func() {
			m.LoadWords([]uint32{0x30000002, 0x30000003, 0x62000008, 0xF0000000})

			Expect(m.Run()).To(Succeed())
			Expect(m.Memory().Cell(0)).To(Equal(int16(5)))
			Expect(m.Registers()[emu.ST]).To(Equal(1))
		})

		It("should reset the data store and stack registers between runs", func() {
			m.LoadWords(program(
				insts.Instruction{Op: insts.OpLOADL, D: 9},
				insts.Instruction{Op: insts.OpHALT},
			))

			Expect(m.Run()).To(Succeed())
			Expect(m.Registers()[emu.ST]).To(Equal(1))

			m.LoadWords([]uint32{0xF0000000})
			Expect(m.Run()).To(Succeed())
			Expect(m.Registers()[emu.ST]).To(Equal(0))
			Expect(m.Memory().Cell(0)).To(Equal(int16(0)))
		})

		It("should remain runnable after a trap", func() {
			m.LoadWords(program(
				insts.Instruction{Op: insts.OpLOAD, R: emu.SB, N: 1, D: 5},
			))
			Expect(m.Run()).NotTo(Succeed())

			m.LoadWords([]uint32{0xF0000000})
			Expect(m.Run()).To(Succeed())
		})
	})

	Describe("traps", func() {
		It("should report divide by zero against the faulting instruction", func() {
			m.LoadWords([]uint32{0x30000007, 0x30000000, 0x6200000B, 0xF0000000})

			err := m.Run()

			var div *emu.DivideByZero
			Expect(err).To(HaveOccurred())
			Expect(err).To(BeAssignableToTypeOf(div))
			Expect(err.(*emu.DivideByZero).Loc).To(Equal(2))
		})

		It("should segfault on a load from the free region", func() {
			m.LoadWords(program(
				insts.Instruction{Op: insts.OpLOAD, R: emu.SB, N: 1, D: 5},
			))

			err := m.Run()

			var seg *emu.SegmentationFault
			Expect(err).To(BeAssignableToTypeOf(seg))
			Expect(err.(*emu.SegmentationFault).Loc).To(Equal(0))
			Expect(err.(*emu.SegmentationFault).Addr).To(Equal(5))
		})

		It("should overflow once the stack reaches the heap frontier", func() {
			m.LoadWords(program(
				insts.Instruction{Op: insts.OpLOADL, D: 0},
				insts.Instruction{Op: insts.OpLOADL, D: 0},
				insts.Instruction{Op: insts.OpLOADL, D: 0},
				insts.Instruction{Op: insts.OpHALT},
			))
			m.Registers()[emu.CP] = 0
			m.Registers()[emu.ST] = 0
			m.Registers()[emu.HT] = 3

			done, err := m.Step()
			Expect(done).To(BeFalse())
			Expect(err).To(Succeed())

			done, err = m.Step()
			Expect(done).To(BeFalse())
			Expect(err).To(Succeed())

			_, err = m.Step()
			var ovf *emu.StackOverflow
			Expect(err).To(BeAssignableToTypeOf(ovf))
			Expect(err.(*emu.StackOverflow).Loc).To(Equal(2))
		})
	})

	Describe("call and return", func() {
		It("should restore ST, LB, and CP across a call round trip", func() {
			m.LoadWords(program(
				insts.Instruction{Op: insts.OpCALL, N: emu.CB, R: emu.CB, D: 2},
				insts.Instruction{Op: insts.OpHALT},
				insts.Instruction{Op: insts.OpRETURN, N: 0, D: 0},
			))

			Expect(m.Run()).To(Succeed())
			Expect(m.Registers()[emu.ST]).To(Equal(0))
			Expect(m.Registers()[emu.LB]).To(Equal(0))
			Expect(m.Registers()[emu.CP]).To(Equal(2))
		})

		It("should keep result cells and drop arguments on return", func() {
			// Push one argument, call a routine that pushes its result and
			// returns keeping 1 cell while dropping the argument.
			m.LoadWords(program(
				insts.Instruction{Op: insts.OpLOADL, D: 11},          // argument
				insts.Instruction{Op: insts.OpCALL, R: emu.CB, D: 3}, // call 0, [cb+3]
				insts.Instruction{Op: insts.OpHALT},
				insts.Instruction{Op: insts.OpLOADL, D: 77}, // result
				insts.Instruction{Op: insts.OpRETURN, N: 1, D: 1},
			))

			Expect(m.Run()).To(Succeed())
			Expect(m.Registers()[emu.ST]).To(Equal(1))
			Expect(m.Memory().Cell(0)).To(Equal(int16(77)))
			Expect(m.Registers()[emu.LB]).To(Equal(0))
		})

		It("should call through a popped address with calli", func() {
			m.LoadWords(program(
				insts.Instruction{Op: insts.OpLOADL, D: 0}, // static link
				insts.Instruction{Op: insts.OpLOADL, D: 4}, // target
				insts.Instruction{Op: insts.OpCALLI},       //
				insts.Instruction{Op: insts.OpHALT},        //
				insts.Instruction{Op: insts.OpRETURN, N: 0, D: 0},
			))

			Expect(m.Run()).To(Succeed())
			Expect(m.Registers()[emu.ST]).To(Equal(0))
			Expect(m.Registers()[emu.LB]).To(Equal(0))
			Expect(m.Registers()[emu.CP]).To(Equal(4))
		})

		It("should segfault on a call beyond the loaded code", func() {
			m.LoadWords(program(
				insts.Instruction{Op: insts.OpCALL, R: emu.CB, D: 100},
			))

			err := m.Run()

			var seg *emu.SegmentationFault
			Expect(err).To(BeAssignableToTypeOf(seg))
			Expect(err.(*emu.SegmentationFault).Addr).To(Equal(100))
		})
	})

	Describe("tracing", func() {
		It("should print each instruction before executing it", func() {
			var trace bytes.Buffer
			m = emu.NewMachine(emu.WithTraceOutput(&trace), emu.WithTrace())
			m.LoadWords([]uint32{0x30000002, 0xF0000000})

			Expect(m.Run()).To(Succeed())
			Expect(trace.String()).To(ContainSubstring("loadl   2"))
			Expect(trace.String()).To(ContainSubstring("halt"))
			Expect(trace.String()).To(ContainSubstring("SB[0] LB[0] ST["))
		})
	})
})
