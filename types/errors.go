package types

import (
	"fmt"
)

var (
	_ error = FormatError{}
	_ error = UnsupportedFeatureError{}
	_ error = MissingEntrypointError{}
	_ error = TypeCheckError{}
	_ error = InvalidModuleError{}
	_ error = InjectionError{}
	_ error = OutOfGasError{}
)

// FormatError is returned when the input bytes do not decode as a structurally
// valid module. Offset is the byte position at which decoding stopped.
type FormatError struct {
	Offset int    `json:"offset"`
	Msg    string `json:"msg"`
}

func (e FormatError) Error() string {
	return fmt.Sprintf("malformed module at offset %d: %s", e.Offset, e.Msg)
}

// UnsupportedFeatureError is returned when a module uses a construct outside
// the allowed feature set. Context names the construct that was found.
type UnsupportedFeatureError struct {
	Feature Feature `json:"feature"`
	Context string  `json:"context,omitempty"`
}

func (e UnsupportedFeatureError) Error() string {
	if e.Context == "" {
		return fmt.Sprintf("unsupported feature %q", e.Feature)
	}
	return fmt.Sprintf("unsupported feature %q: %s", e.Feature, e.Context)
}

// MissingEntrypointError is returned when the module does not export a
// function under the reserved entrypoint name.
type MissingEntrypointError struct {
	Name string `json:"name"`
}

func (e MissingEntrypointError) Error() string {
	return fmt.Sprintf("entrypoint function %q not exported", e.Name)
}

// TypeCheckError is returned when a function body fails validation.
// FuncIndex is in the function index space, imports included.
type TypeCheckError struct {
	FuncIndex uint32 `json:"func_index"`
	Offset    int    `json:"offset"`
	Reason    string `json:"reason"`
}

func (e TypeCheckError) Error() string {
	return fmt.Sprintf("type check failed in function %d at instruction %d: %s", e.FuncIndex, e.Offset, e.Reason)
}

// InvalidModuleError is returned when a decoded module violates a module level
// rule, such as an out of range index or malformed limits.
type InvalidModuleError struct {
	Section string `json:"section"`
	Reason  string `json:"reason"`
}

func (e InvalidModuleError) Error() string {
	return fmt.Sprintf("invalid %s section: %s", e.Section, e.Reason)
}

// InjectionError signals an internal inconsistency while instrumenting, for
// example an instruction without a weight in the cost model.
type InjectionError struct {
	FuncIndex *uint32 `json:"func_index,omitempty"`
	Reason    string  `json:"reason"`
}

func (e InjectionError) Error() string {
	if e.FuncIndex == nil {
		return fmt.Sprintf("gas injection failed: %s", e.Reason)
	}
	return fmt.Sprintf("gas injection failed in function %d: %s", *e.FuncIndex, e.Reason)
}

// OutOfGasError is returned by host side meters when a charge exceeds the
// remaining budget.
type OutOfGasError struct {
	Wanted    Gas `json:"wanted"`
	Available Gas `json:"available"`
}

func (e OutOfGasError) Error() string {
	return fmt.Sprintf("out of gas: required %d, but only %d available", e.Wanted, e.Available)
}
