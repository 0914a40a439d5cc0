// Package insts provides TAM instruction definitions, encoding, and decoding.
//
// A TAM instruction is a single 32-bit word packing four fields:
//   - bits 31..28: opcode
//   - bits 27..24: register index
//   - bits 23..16: count/depth operand n
//   - bits 15..0:  signed displacement d (two's complement)
//
// Usage:
//
//	inst := insts.Decode(0x30000002) // loadl 2
//	fmt.Printf("Op: %v, D: %d\n", inst.Op, inst.D)
package insts

import "fmt"

// Op represents a TAM opcode.
type Op uint8

// TAM opcodes.
const (
	OpLOAD   Op = 0  // push n cells starting at [r+d]
	OpLOADA  Op = 1  // push the address [r+d]
	OpLOADI  Op = 2  // pop an address, push n cells starting there
	OpLOADL  Op = 3  // push the literal d
	OpSTORE  Op = 4  // pop n cells into [r+d..r+d+n)
	OpSTOREI Op = 5  // pop an address, pop n cells into it
	OpCALL   Op = 6  // call [r+d], static link from register n
	OpCALLI  Op = 7  // pop address and static link, call
	OpRETURN Op = 8  // return keeping n results, dropping d arguments
	OpPUSH   Op = 10 // reserve d uninitialised cells
	OpPOP    Op = 11 // keep top n cells, remove d cells beneath
	OpJUMP   Op = 12 // jump to [r+d]
	OpJUMPI  Op = 13 // pop address, jump to it
	OpJUMPIF Op = 14 // pop value, jump to [r+d] if it equals n
	OpHALT   Op = 15 // stop execution
)

// NumRegisters is the size of the register file addressable by the r field.
const NumRegisters = 16

// regNames maps register indices to their assembly names. The ordering is
// part of the bytecode ABI: compiled programs encode these indices directly.
var regNames = [NumRegisters]string{
	"cb", "ct", "pb", "pt", "sb", "st", "hb", "ht",
	"lb", "l1", "l2", "l3", "l4", "l5", "l6", "cp",
}

// RegisterName returns the assembly name of register index r, or "" if r is
// out of range.
func RegisterName(r uint8) string {
	if r >= NumRegisters {
		return ""
	}
	return regNames[r]
}

// RegisterIndex returns the index of the register with the given assembly
// name. The second return value is false if the name is unknown.
func RegisterIndex(name string) (uint8, bool) {
	for i, n := range regNames {
		if n == name {
			return uint8(i), true
		}
	}
	return 0, false
}

// Instruction represents a decoded TAM instruction.
type Instruction struct {
	Op Op    // Operation code
	R  uint8 // Register index (0..15)
	N  uint8 // Count or static-link depth
	D  int16 // Signed displacement or immediate
}

// String renders the instruction in TAM assembly syntax.
func (i Instruction) String() string {
	reg := RegisterName(i.R)
	switch i.Op {
	case OpLOAD:
		return fmt.Sprintf("load    %d, [%s%+d]", i.N, reg, i.D)
	case OpLOADA:
		return fmt.Sprintf("loada   [%s%+d]", reg, i.D)
	case OpLOADI:
		return fmt.Sprintf("loadi   %d", i.N)
	case OpLOADL:
		return fmt.Sprintf("loadl   %d", i.D)
	case OpSTORE:
		return fmt.Sprintf("store   %d, [%s%+d]", i.N, reg, i.D)
	case OpSTOREI:
		return fmt.Sprintf("storei  %d", i.N)
	case OpCALL:
		return fmt.Sprintf("call    %d, [%s%+d]", i.N, reg, i.D)
	case OpCALLI:
		return "calli"
	case OpRETURN:
		return fmt.Sprintf("return  %d, %d", i.N, i.D)
	case OpPUSH:
		return fmt.Sprintf("push    %d", i.D)
	case OpPOP:
		return fmt.Sprintf("pop     %d, %d", i.N, i.D)
	case OpJUMP:
		return fmt.Sprintf("jump    [%s%+d]", reg, i.D)
	case OpJUMPI:
		return "jumpi"
	case OpJUMPIF:
		return fmt.Sprintf("jumpif  %d, [%s%+d]", i.N, reg, i.D)
	case OpHALT:
		return "halt"
	default:
		return ""
	}
}
