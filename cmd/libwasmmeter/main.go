// Command libwasmmeter builds the C library around the metering pipeline:
//
//	go build -buildmode=c-shared -o libwasmmeter.so ./cmd/libwasmmeter
//
// Buffers handed out to C are allocated with malloc and must be released
// with the matching free function declared in wasmmeter.h.
package main

/*
#include <stdint.h>
#include <stdlib.h>
#include "result.h"
*/
import "C"

import (
	"os"
	"unsafe"

	"github.com/rs/zerolog"

	"github.com/aspect-vm/wasmmeter"
)

var logger = zerolog.New(os.Stderr).Level(zerolog.WarnLevel).With().Timestamp().Str("module", "libwasmmeter").Logger()

// goView returns a Go slice over C memory without copying. It must not
// outlive the call that received ptr.
func goView(ptr unsafe.Pointer, n C.size_t) []byte {
	if ptr == nil || n == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(ptr), int(n))
}

//export wasm_instrument
func wasm_instrument(rawModule *C.uchar, n C.size_t) C.WasmInstrumentResult {
	code := goView(unsafe.Pointer(rawModule), n)
	out, err := wasmmeter.Instrument(code)
	if err != nil {
		logger.Warn().Err(err).Stringer("checksum", wasmmeter.CreateChecksum(code)).Msg("instrumentation failed")
		return C.WasmInstrumentResult{ptr: nil, len: 0}
	}
	return C.WasmInstrumentResult{ptr: C.CBytes(out), len: C.size_t(len(out))}
}

//export wasm_instrument_free
func wasm_instrument_free(ptr unsafe.Pointer) {
	C.free(ptr)
}

//export aspect_validate
func aspect_validate(wasm *C.uint8_t, n C.size_t) *C.char {
	if err := wasmmeter.Validate(goView(unsafe.Pointer(wasm), n)); err != nil {
		return C.CString(err.Error())
	}
	return nil
}

//export aspect_error_free
func aspect_error_free(err *C.char) {
	C.free(unsafe.Pointer(err))
}

func main() {}
