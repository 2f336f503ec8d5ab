package isa

// Register is a physical CVM register index. The file holds 64 registers:
// the first 16 are reserved and alias machine state, the remaining 48 are
// general purpose and owned by the register allocator.
type Register uint8

const (
	// RegZero always reads as 0.
	RegZero Register = iota
	// RegOne always reads as 1.
	RegOne
	// RegOverflow holds the overflow bits of the last wide operation.
	RegOverflow
	// RegPC is the program counter.
	RegPC
	// RegStackStart points at the bottom of the writable stack area.
	RegStackStart
	// RegStackPtr is the stack pointer.
	RegStackPtr
	// RegFramePtr is the frame pointer.
	RegFramePtr
	// RegHeapPtr is the heap pointer.
	RegHeapPtr
	// RegError holds the error flags of the last fallible operation.
	RegError
	// RegGlobalGas is the remaining global gas.
	RegGlobalGas
	// RegContextGas is the remaining gas in the current call context.
	RegContextGas
	// RegBalance is the asset balance of the current context.
	RegBalance
	// RegInstrStart points at the start of the executable code section.
	RegInstrStart
	// RegReturnValue holds the return value of the last call.
	RegReturnValue
	// RegReturnLength holds the return data length of the last call.
	RegReturnLength
	// RegFlags is the VM flags register.
	RegFlags

	// NumReserved is the count of reserved registers above.
	NumReserved
)

const (
	// NumRegisters is the total size of the register file.
	NumRegisters = 64
	// NumAllocatable is the number of general-purpose registers available
	// to the allocator.
	NumAllocatable = NumRegisters - int(NumReserved)
)

var reservedNames = [NumReserved]string{
	"zero", "one", "of", "pc", "ssp", "sp", "fp", "hp",
	"err", "ggas", "cgas", "bal", "is", "ret", "retl", "flag",
}

// IsReserved reports whether r aliases machine state.
func (r Register) IsReserved() bool { return r < NumReserved }

// Valid reports whether r fits the register file.
func (r Register) Valid() bool { return int(r) < NumRegisters }

func (r Register) String() string {
	if r.IsReserved() {
		return "$" + reservedNames[r]
	}
	return "$r" + itoa(int(r)-int(NumReserved))
}

// AllocatableAt returns the i-th general-purpose register.
func AllocatableAt(i int) Register {
	return Register(int(NumReserved) + i)
}

func itoa(v int) string {
	if v == 0 {
		return "0"
	}
	var buf [4]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
