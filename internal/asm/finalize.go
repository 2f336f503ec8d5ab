package asm

// Finalize pads the allocated op stream so that the function occupies an
// even number of instruction words. Word sizes come from the caller:
// data loads expand to a size that depends on the resolved data section
// offset, which only the serializer knows, so the sizer is injected and
// must agree with the serializer's final layout.
func Finalize(s *AllocatedInstructionSet, size func(*Op) int) {
	total := 0
	for i := range s.Ops {
		total += size(&s.Ops[i])
	}
	if total%2 != 0 {
		s.Ops = append(s.Ops, NewNoop())
	}
}
