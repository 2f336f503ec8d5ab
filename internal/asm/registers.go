package asm

import (
	"fmt"

	"cinder/internal/isa"
)

// RegisterKind distinguishes unallocated virtual registers from fixed
// machine registers.
type RegisterKind uint8

const (
	// RegisterVirtual is an abstract register awaiting allocation.
	RegisterVirtual RegisterKind = iota
	// RegisterFixed aliases a concrete machine register. Reserved
	// registers are fixed from the start and are never allocated;
	// general-purpose registers become fixed during allocation.
	RegisterFixed
)

// VirtualRegister is the register operand of abstract ops: either a
// virtual name or a fixed machine register.
type VirtualRegister struct {
	Kind  RegisterKind
	ID    uint32
	Fixed isa.Register
}

// Virtual returns the virtual register with the given sequence number.
func Virtual(id uint32) VirtualRegister {
	return VirtualRegister{Kind: RegisterVirtual, ID: id}
}

// Fixed wraps a concrete machine register.
func Fixed(r isa.Register) VirtualRegister {
	return VirtualRegister{Kind: RegisterFixed, Fixed: r}
}

// IsVirtual reports whether the register still needs allocation.
func (r VirtualRegister) IsVirtual() bool { return r.Kind == RegisterVirtual }

func (r VirtualRegister) String() string {
	if r.Kind == RegisterVirtual {
		return fmt.Sprintf("$v%d", r.ID)
	}
	return r.Fixed.String()
}

// RegisterSequencer hands out fresh virtual registers, strictly monotonic
// within one function. Sequencers are parameter-threaded through lowering
// so tests can construct fresh, deterministic ones.
type RegisterSequencer struct {
	next uint32
}

// NewRegisterSequencer creates a sequencer starting at zero.
func NewRegisterSequencer() *RegisterSequencer { return &RegisterSequencer{} }

// Next returns a register never handed out before.
func (s *RegisterSequencer) Next() VirtualRegister {
	r := Virtual(s.next)
	s.next++
	return r
}

// Count reports how many registers were issued.
func (s *RegisterSequencer) Count() uint32 { return s.next }

// Label is an opaque, monotonically issued jump target identifier. It is
// resolved to a byte offset only at serialization time.
type Label uint32

func (l Label) String() string { return fmt.Sprintf(".L%d", uint32(l)) }

// LabelSequencer hands out fresh labels, strictly monotonic within one
// function.
type LabelSequencer struct {
	next uint32
}

// NewLabelSequencer creates a sequencer starting at zero.
func NewLabelSequencer() *LabelSequencer { return &LabelSequencer{} }

// Next returns a label never handed out before.
func (s *LabelSequencer) Next() Label {
	l := Label(s.next)
	s.next++
	return l
}
