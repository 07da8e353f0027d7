package main

/*
#include <stdint.h>
#include <stdlib.h>
#include "result.h"
*/
import "C"

// The helpers below drive the exported functions the way a C caller would.
// cgo is not available in _test.go files, so tests go through them.

func callInstrument(code []byte) ([]byte, bool) {
	in := C.CBytes(code)
	defer C.free(in)

	res := wasm_instrument((*C.uchar)(in), C.size_t(len(code)))
	if res.ptr == nil {
		return nil, false
	}
	defer wasm_instrument_free(res.ptr)
	return C.GoBytes(res.ptr, C.int(res.len)), true
}

func callValidate(code []byte) (string, bool) {
	in := C.CBytes(code)
	defer C.free(in)

	msg := aspect_validate((*C.uint8_t)(in), C.size_t(len(code)))
	if msg == nil {
		return "", true
	}
	defer aspect_error_free(msg)
	return C.GoString(msg), false
}
