package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// IR construction and verification
	IRInfo               Code = 1000
	IRMissingTerminator  Code = 1001
	IRDanglingBlockRef   Code = 1002
	IRRecursiveAggregate Code = 1003
	IRBadOperandCount    Code = 1004

	// Lowering
	LowerInfo              Code = 2000
	LowerAggregateTooLarge Code = 2001
	LowerImmediateOverflow Code = 2002
	LowerUnknownName       Code = 2003
	LowerUnsupportedInstr  Code = 2004

	// Emission
	EmitInfo               Code = 3000
	EmitDataOffsetOverflow Code = 3001
	EmitDuplicateSelector  Code = 3002
	EmitMissingEntryPoint  Code = 3003
	EmitJumpOffsetOverflow Code = 3004

	// Driver / I/O
	IOInfo          Code = 9000
	IOLoadFileError Code = 9001
	IOWriteError    Code = 9002

	// Internal invariant violations surfaced as diagnostics
	InternalError Code = 9900
)

func (c Code) String() string {
	return fmt.Sprintf("CIN%04d", uint16(c))
}
