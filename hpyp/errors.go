package hpyp

import "fmt"

// ConfigurationError reports invalid construction input: a vocabulary size
// inconsistent with the observed symbols, or hyperparameters outside their
// valid ranges.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string {
	return "hpyp: configuration: " + e.Msg
}

func configErrorf(format string, args ...interface{}) error {
	return &ConfigurationError{Msg: fmt.Sprintf(format, args...)}
}

// SerializationError reports a truncated or corrupt model file, or a file
// written by a different restaurant variant than the configured one. The
// in-memory model is left untouched when a load fails with it.
type SerializationError struct {
	Msg string
}

func (e *SerializationError) Error() string {
	return "hpyp: serialization: " + e.Msg
}

func serializationErrorf(format string, args ...interface{}) error {
	return &SerializationError{Msg: fmt.Sprintf(format, args...)}
}

// NumericError reports probability underflow or NaN during a predictive
// computation.
type NumericError struct {
	Msg string
}

func (e *NumericError) Error() string {
	return "hpyp: numeric: " + e.Msg
}

func numericErrorf(format string, args ...interface{}) error {
	return &NumericError{Msg: fmt.Sprintf(format, args...)}
}
