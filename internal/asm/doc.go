// Package asm models the virtual assembly the backend lowers IR into: an
// ordered op stream mixing real machine opcodes with organizational
// pseudo-ops (labels, jumps, comments), first over unlimited virtual
// registers and, after allocation, over the physical register file.
package asm
