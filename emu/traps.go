// Package emu provides functional TAM emulation.
package emu

import (
	"errors"
	"fmt"
)

// SegmentationFault reports a data access inside the free region between
// stack and heap, or a control transfer beyond the loaded code.
type SegmentationFault struct {
	Loc  int // address of the faulting instruction
	Addr int // the out-of-bounds address
}

func (e *SegmentationFault) Error() string {
	return fmt.Sprintf("access violation at loc %04x: %04x is out of bounds", e.Loc, e.Addr)
}

// StackOverflow reports a collision between the stack and the heap.
type StackOverflow struct {
	Loc int // address of the faulting instruction
}

func (e *StackOverflow) Error() string {
	return fmt.Sprintf("stack overflow at loc %04x", e.Loc)
}

// DivideByZero reports a div or mod primitive with a zero divisor.
type DivideByZero struct {
	Loc int // address of the faulting instruction
}

func (e *DivideByZero) Error() string {
	return fmt.Sprintf("divide by zero attempted at loc %04x", e.Loc)
}

// ErrUnimplementedPrimitive is returned, wrapped with the primitive's name,
// when a program invokes a primitive that has no defined semantics.
var ErrUnimplementedPrimitive = errors.New("primitive not implemented")

// IsTrap reports whether err is one of the three machine trap kinds, as
// opposed to a host-level failure such as a broken stdin stream.
func IsTrap(err error) bool {
	var seg *SegmentationFault
	var ovf *StackOverflow
	var div *DivideByZero
	return errors.As(err, &seg) || errors.As(err, &ovf) || errors.As(err, &div)
}
