package types

import (
	"errors"
	"reflect"
)

// MeterError captures every error the pipeline can return in one JSON friendly value.
// Exactly one of the fields should be set.
type MeterError struct {
	Format             *FormatError             `json:"format,omitempty"`
	UnsupportedFeature *UnsupportedFeatureError `json:"unsupported_feature,omitempty"`
	MissingEntrypoint  *MissingEntrypointError  `json:"missing_entrypoint,omitempty"`
	TypeCheck          *TypeCheckError          `json:"type_check,omitempty"`
	InvalidModule      *InvalidModuleError      `json:"invalid_module,omitempty"`
	Injection          *InjectionError          `json:"injection,omitempty"`
}

var _ error = MeterError{}

func (a MeterError) Error() string {
	switch {
	case a.Format != nil:
		return a.Format.Error()
	case a.UnsupportedFeature != nil:
		return a.UnsupportedFeature.Error()
	case a.MissingEntrypoint != nil:
		return a.MissingEntrypoint.Error()
	case a.TypeCheck != nil:
		return a.TypeCheck.Error()
	case a.InvalidModule != nil:
		return a.InvalidModule.Error()
	case a.Injection != nil:
		return a.Injection.Error()
	default:
		panic("unknown error variant")
	}
}

// Kind returns the JSON name of the variant that is set.
func (a MeterError) Kind() string {
	switch {
	case a.Format != nil:
		return "format"
	case a.UnsupportedFeature != nil:
		return "unsupported_feature"
	case a.MissingEntrypoint != nil:
		return "missing_entrypoint"
	case a.TypeCheck != nil:
		return "type_check"
	case a.InvalidModule != nil:
		return "invalid_module"
	case a.Injection != nil:
		return "injection"
	default:
		return "unknown"
	}
}

// ToMeterError will try to convert the given error to a MeterError.
// Wrapped errors are unwrapped until a known variant is found.
//
// This returns nil when err is nil or holds none of the known variants.
func ToMeterError(err error) *MeterError {
	if isNil(err) {
		return nil
	}

	var me MeterError
	if errors.As(err, &me) {
		return &me
	}
	var format FormatError
	if errors.As(err, &format) {
		return &MeterError{Format: &format}
	}
	var feature UnsupportedFeatureError
	if errors.As(err, &feature) {
		return &MeterError{UnsupportedFeature: &feature}
	}
	var entry MissingEntrypointError
	if errors.As(err, &entry) {
		return &MeterError{MissingEntrypoint: &entry}
	}
	var typeCheck TypeCheckError
	if errors.As(err, &typeCheck) {
		return &MeterError{TypeCheck: &typeCheck}
	}
	var invalid InvalidModuleError
	if errors.As(err, &invalid) {
		return &MeterError{InvalidModule: &invalid}
	}
	var injection InjectionError
	if errors.As(err, &injection) {
		return &MeterError{Injection: &injection}
	}
	return nil
}

// check if an interface is nil (even if it has type info).
func isNil(i any) bool {
	if i == nil {
		return true
	}
	if reflect.TypeOf(i).Kind() == reflect.Ptr {
		// IsNil panics if you try it on a struct (not a pointer)
		return reflect.ValueOf(i).IsNil()
	}
	// if we aren't a pointer, can't be nil, can we?
	return false
}
