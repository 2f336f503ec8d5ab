package lower

import "cinder/internal/asm"

// Namespace maps frontend names to lowered storage: registers for
// locals and parameters, data section ids for named constants. The
// backend queries it but the frontend owns its contents.
type Namespace struct {
	Regs map[string]asm.VirtualRegister
	Data map[string]asm.DataID
}

// NewNamespace creates an empty namespace.
func NewNamespace() *Namespace {
	return &Namespace{
		Regs: make(map[string]asm.VirtualRegister),
		Data: make(map[string]asm.DataID),
	}
}

// BindReg records the register backing a name.
func (ns *Namespace) BindReg(name string, r asm.VirtualRegister) {
	ns.Regs[name] = r
}

// BindData records the data section entry backing a name.
func (ns *Namespace) BindData(name string, id asm.DataID) {
	ns.Data[name] = id
}

// LookupReg resolves a name to its register.
func (ns *Namespace) LookupReg(name string) (asm.VirtualRegister, bool) {
	r, ok := ns.Regs[name]
	return r, ok
}

// LookupData resolves a name to its data section entry.
func (ns *Namespace) LookupData(name string) (asm.DataID, bool) {
	id, ok := ns.Data[name]
	return id, ok
}
