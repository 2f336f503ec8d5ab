// Package isa defines the CVM target: its register file, opcode set, and
// the 4-byte instruction word encoding. The backend emits this encoding;
// executing it is the VM's business, not ours.
package isa
