// Package ui renders rdeploy's terminal output.
//
// The Printer writes the status lines that bracket each deployment step:
//
//	[RUNNING] make build
//	[SUCCESS] exit code: 0
//	rsync successful!
//	SSH login successful!
//
// Child process output is never routed through this package; it goes
// straight to the inherited stdout/stderr.
//
// # Color Scheme
//
// Colors are ANSI codes for broad terminal compatibility:
//
//	ColorOK     green   phase and check success
//	ColorFail   red     failures
//	ColorWarn   yellow  non-fatal problems
//	ColorPhase  cyan    phase names
//	ColorDim    gray    timings and hints
//
// Color is only emitted when the writer is a terminal and --no-color is
// unset. With color off, output is byte-for-byte plain text.
package ui
