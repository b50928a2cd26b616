// SPDX-License-Identifier: MIT
package buffer

import (
	"errors"
	"fmt"
)

var (
	// ErrConstruction is wrapped by every ConstructionError so callers can
	// test with errors.Is without caring which parameter was rejected.
	ErrConstruction = errors.New("invalid buffer geometry")

	// ErrReadBounds is returned when more samples are requested than the
	// ring holds.
	ErrReadBounds = errors.New("read exceeds buffer length")
)

// ConstructionError names the constructor parameter that failed validation.
type ConstructionError struct {
	Param  string // blockSize, bufferSize or sampleRate
	Value  any
	Reason string
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("%s: %s=%v %s", ErrConstruction, e.Param, e.Value, e.Reason)
}

func (e *ConstructionError) Unwrap() error {
	return ErrConstruction
}
