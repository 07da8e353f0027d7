// Package api wires the instrumentation and validation passes into the two
// operations exposed to Go callers and to the C library.
package api
