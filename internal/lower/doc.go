// Package lower translates typed IR functions into abstract assembly:
// machine ops over fresh virtual registers and symbolic labels, ready
// for the asm-level passes and register allocation.
package lower
