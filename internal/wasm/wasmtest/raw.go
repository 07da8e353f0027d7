package wasmtest

// Header is the module preamble for binary version 1.
var Header = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

// Uleb encodes v as unsigned LEB128.
func Uleb(v uint64) []byte {
	var out []byte
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			c |= 0x80
		}
		out = append(out, c)
		if v == 0 {
			return out
		}
	}
}

// Section frames payload as a section with the given id.
func Section(id byte, payload ...byte) []byte {
	out := []byte{id}
	out = append(out, Uleb(uint64(len(payload)))...)
	return append(out, payload...)
}

// Raw concatenates the header with the given sections.
func Raw(sections ...[]byte) []byte {
	out := append([]byte(nil), Header...)
	for _, s := range sections {
		out = append(out, s...)
	}
	return out
}

// Name encodes a length prefixed name.
func Name(s string) []byte {
	return append(Uleb(uint64(len(s))), s...)
}

// EntryWithBody returns a module with a single exported entrypoint of type
// () -> () whose body is body. body holds the encoded locals vector followed
// by the instructions, including the final end.
func EntryWithBody(body []byte) []byte {
	typeSec := Section(1, 0x01, 0x60, 0x00, 0x00)
	funcSec := Section(3, 0x01, 0x00)
	exportPayload := append([]byte{0x01}, Name("__aspect_start__")...)
	exportPayload = append(exportPayload, 0x00, 0x00)
	exportSec := Section(7, exportPayload...)
	codePayload := append([]byte{0x01}, Uleb(uint64(len(body)))...)
	codePayload = append(codePayload, body...)
	codeSec := Section(10, codePayload...)
	return Raw(typeSec, funcSec, exportSec, codeSec)
}
