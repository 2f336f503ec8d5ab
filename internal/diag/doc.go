// Package diag defines the diagnostic model shared by all backend stages.
//
// User-facing compile errors and warnings are collected into a Bag carried
// in each stage result. Internal invariant violations are not diagnostics:
// they panic with an ICE value and are converted at the driver boundary.
package diag
