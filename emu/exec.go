// Package emu provides functional TAM emulation.
package emu

import "github.com/nottsknight/triangle-abstract-machine/insts"

// execute dispatches a decoded instruction to its effect on the registers
// and the data store. Unknown opcodes are no-ops.
func (m *Machine) execute(inst insts.Instruction) error {
	m.fault = nil

	var err error
	switch inst.Op {
	case insts.OpLOAD:
		err = m.execLoad(inst)
	case insts.OpLOADA:
		err = m.execLoada(inst)
	case insts.OpLOADI:
		err = m.execLoadi(inst)
	case insts.OpLOADL:
		err = m.execLoadl(inst)
	case insts.OpSTORE:
		err = m.execStore(inst)
	case insts.OpSTOREI:
		err = m.execStorei(inst)
	case insts.OpCALL:
		err = m.execCall(inst)
	case insts.OpCALLI:
		err = m.execCalli(inst)
	case insts.OpRETURN:
		err = m.execReturn(inst)
	case insts.OpPUSH:
		err = m.execPush(inst)
	case insts.OpPOP:
		err = m.execPop(inst)
	case insts.OpJUMP:
		err = m.execJump(inst)
	case insts.OpJUMPI:
		err = m.execJumpi(inst)
	case insts.OpJUMPIF:
		err = m.execJumpif(inst)
	}

	if err == nil {
		err = m.fault
	}
	return err
}

// pushData writes a value at ST and bumps ST. ST may transiently pass HT
// within a multi-cell instruction; the stack check at the end of the
// instruction reports the collision.
func (m *Machine) pushData(v int16) {
	if m.regs[ST] >= 0 && m.regs[ST] < MemSize {
		m.mem.data[m.regs[ST]] = v
	}
	m.regs[ST]++
}

// popData removes and returns the top stack cell. Popping an empty stack
// records a segmentation fault against the current instruction and reads
// as zero.
func (m *Machine) popData() int16 {
	if m.regs[ST] <= m.regs[SB] {
		if m.fault == nil {
			m.fault = &SegmentationFault{Loc: m.regs[CP] - 1, Addr: m.regs[ST] - 1}
		}
		return 0
	}
	m.regs[ST]--
	return m.mem.data[m.regs[ST]]
}

// resolve computes the absolute data-store address named by the instruction's
// register and displacement fields.
func (m *Machine) resolve(inst insts.Instruction) int {
	return m.regs[inst.R] + int(inst.D)
}

// dataAddr reinterprets a popped stack cell as an unsigned 16-bit address,
// keeping heap cells above 32767 addressable.
func dataAddr(v int16) int {
	return int(uint16(v))
}

// checkDataAddr validates a data access. An address is live iff it falls
// below ST (a stack cell) or above HT (a heap cell); everything between is
// free space. HT itself is the heap frontier and is not addressable.
func (m *Machine) checkDataAddr(addr int) error {
	if addr >= 0 && addr < MemSize && (addr < m.regs[ST] || addr > m.regs[HT]) {
		return nil
	}
	return &SegmentationFault{Loc: m.regs[CP] - 1, Addr: addr}
}

// checkStack reports a stack overflow if the stack has grown into the heap.
func (m *Machine) checkStack() error {
	if m.regs[ST] < m.regs[HT] {
		return nil
	}
	return &StackOverflow{Loc: m.regs[CP] - 1}
}

// checkCodeAddr validates a control-transfer target.
func (m *Machine) checkCodeAddr(addr int) error {
	if addr >= 0 && addr < m.regs[CT] {
		return nil
	}
	return &SegmentationFault{Loc: m.regs[CP] - 1, Addr: addr}
}

func (m *Machine) execLoad(inst insts.Instruction) error {
	addr := m.resolve(inst)
	for i := 0; i < int(inst.N); i++ {
		if err := m.checkDataAddr(addr); err != nil {
			return err
		}
		m.pushData(m.mem.data[addr])
		addr++
	}
	return m.checkStack()
}

func (m *Machine) execLoada(inst insts.Instruction) error {
	addr := m.resolve(inst)
	if err := m.checkDataAddr(addr); err != nil {
		return err
	}
	m.pushData(int16(addr))
	return m.checkStack()
}

func (m *Machine) execLoadi(inst insts.Instruction) error {
	addr := dataAddr(m.popData())
	for i := 0; i < int(inst.N); i++ {
		if err := m.checkDataAddr(addr); err != nil {
			return err
		}
		m.pushData(m.mem.data[addr])
		addr++
	}
	return m.checkStack()
}

func (m *Machine) execLoadl(inst insts.Instruction) error {
	m.pushData(inst.D)
	return m.checkStack()
}

// execStore pops n cells and writes them to addr, addr+1, ... in pop order.
// The first value popped (the last one pushed) lands at addr, so the stacked
// values appear in memory in the reverse of their push order.
func (m *Machine) execStore(inst insts.Instruction) error {
	addr := m.resolve(inst)
	for i := 0; i < int(inst.N); i++ {
		if err := m.checkDataAddr(addr); err != nil {
			return err
		}
		m.mem.data[addr] = m.popData()
		addr++
	}
	return m.checkStack()
}

func (m *Machine) execStorei(inst insts.Instruction) error {
	addr := dataAddr(m.popData())
	for i := 0; i < int(inst.N); i++ {
		if err := m.checkDataAddr(addr); err != nil {
			return err
		}
		m.mem.data[addr] = m.popData()
		addr++
	}
	return m.checkStack()
}

// execCall selects between a primitive call and a non-primitive call. A
// call is primitive iff its base register is PB and the displacement lies
// in [1, 27]; displacement 0 or anything past the primitive table falls
// through to the non-primitive path and faults against CT.
func (m *Machine) execCall(inst insts.Instruction) error {
	if inst.R == PB && inst.D > 0 && inst.D < 28 {
		return m.callPrimitive(inst.D)
	}
	return m.callNonPrimitive(inst)
}

// callNonPrimitive pushes the activation frame triple (static link, dynamic
// link, return address) and transfers control. The n field selects the
// register supplying the static link, implementing lexical nesting.
func (m *Machine) callNonPrimitive(inst insts.Instruction) error {
	addr := m.resolve(inst)
	if err := m.checkCodeAddr(addr); err != nil {
		return err
	}
	if inst.N >= insts.NumRegisters {
		return &SegmentationFault{Loc: m.regs[CP] - 1, Addr: int(inst.N)}
	}

	staticLink := m.regs[inst.N]
	dynamicLink := m.regs[LB]
	retAddr := m.regs[CP]

	m.pushData(int16(staticLink))
	m.pushData(int16(dynamicLink))
	m.pushData(int16(retAddr))
	if err := m.checkStack(); err != nil {
		return err
	}

	m.regs[LB] = m.regs[ST] - 3
	m.regs[CP] = addr

	if m.trace {
		m.printFrameTrace()
	}
	return nil
}

func (m *Machine) execCalli(_ insts.Instruction) error {
	addr := dataAddr(m.popData())
	if err := m.checkCodeAddr(addr); err != nil {
		return err
	}

	staticLink := m.popData()
	dynamicLink := m.regs[LB]
	retAddr := m.regs[CP]

	m.pushData(staticLink)
	m.pushData(int16(dynamicLink))
	m.pushData(int16(retAddr))
	if err := m.checkStack(); err != nil {
		return err
	}

	m.regs[LB] = m.regs[ST] - 3
	m.regs[CP] = addr

	if m.trace {
		m.printFrameTrace()
	}
	return nil
}

// execReturn unwinds the current frame: the top n cells are kept as the
// result, everything above LB plus the frame triple is discarded, d caller
// argument cells are popped, and the result is pushed back in its original
// order. Control returns to the saved return address and LB follows the
// dynamic link.
func (m *Machine) execReturn(inst insts.Instruction) error {
	if m.regs[LB]+2 >= MemSize {
		return &SegmentationFault{Loc: m.regs[CP] - 1, Addr: m.regs[LB] + 2}
	}

	retAddr := dataAddr(m.mem.data[m.regs[LB]+2])
	if err := m.checkCodeAddr(retAddr); err != nil {
		return err
	}

	result := make([]int16, 0, int(inst.N))
	for i := 0; i < int(inst.N); i++ {
		result = append(result, m.popData())
	}

	for m.regs[ST] > m.regs[LB] {
		m.popData()
	}
	for i := 0; i < int(inst.D); i++ {
		m.popData()
	}

	for i := len(result) - 1; i >= 0; i-- {
		m.pushData(result[i])
	}

	m.regs[CP] = retAddr
	m.regs[LB] = dataAddr(m.mem.data[m.regs[LB]+1])
	return nil
}

func (m *Machine) execPush(inst insts.Instruction) error {
	m.regs[ST] += int(inst.D)
	return m.checkStack()
}

// execPop keeps the top n cells and removes the d cells beneath them. It is
// the stack half of RETURN without the control transfer.
func (m *Machine) execPop(inst insts.Instruction) error {
	result := make([]int16, 0, int(inst.N))
	for i := 0; i < int(inst.N); i++ {
		result = append(result, m.popData())
	}

	for i := 0; i < int(inst.D); i++ {
		m.popData()
	}

	for i := len(result) - 1; i >= 0; i-- {
		m.pushData(result[i])
	}
	return m.checkStack()
}

func (m *Machine) execJump(inst insts.Instruction) error {
	addr := m.resolve(inst)
	if err := m.checkCodeAddr(addr); err != nil {
		return err
	}
	m.regs[CP] = addr
	return nil
}

func (m *Machine) execJumpi(_ insts.Instruction) error {
	addr := dataAddr(m.popData())
	if err := m.checkCodeAddr(addr); err != nil {
		return err
	}
	m.regs[CP] = addr
	return nil
}

func (m *Machine) execJumpif(inst insts.Instruction) error {
	val := m.popData()
	if val != int16(inst.N) {
		return nil
	}

	addr := m.resolve(inst)
	if err := m.checkCodeAddr(addr); err != nil {
		return err
	}
	m.regs[CP] = addr
	return nil
}
