// Package logx is protosched's structured logging: a small value-type
// Logger over zerolog whose sinks can be swapped while the daemon runs.
//
// Stderr gets either a human console format or JSON lines, an optional
// file always gets JSON. Command output on stdout is never touched.
package logx
