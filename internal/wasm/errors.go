package wasm

import (
	"fmt"

	"github.com/aspect-vm/wasmmeter/types"
)

func formatErrorf(off int, format string, args ...interface{}) error {
	return types.FormatError{Offset: off, Msg: fmt.Sprintf(format, args...)}
}

func unsupported(feature types.Feature, format string, args ...interface{}) error {
	return types.UnsupportedFeatureError{Feature: feature, Context: fmt.Sprintf(format, args...)}
}
