// SPDX-License-Identifier: MIT
package spectrum

import (
	"errors"
	"fmt"
)

// ErrDomain is wrapped by every DomainError.
var ErrDomain = errors.New("spectrum constraint violated")

// DomainError reports a Spectrum invariant violation. Constraint is a short
// stable name callers can switch on.
type DomainError struct {
	Constraint string
	Detail     string
}

// Constraint names.
const (
	ConstraintZeroFirstFrequency = "FirstFrequency==0"
	ConstraintIncreasingStep     = "NewStep>FrequencyStep"
	ConstraintProfileCoverage    = "ProfileRangeCovered"
	ConstraintPositivePower      = "Power>0"
)

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrDomain, e.Constraint, e.Detail)
}

func (e *DomainError) Unwrap() error {
	return ErrDomain
}

func domainErrorf(constraint, format string, args ...any) error {
	return &DomainError{Constraint: constraint, Detail: fmt.Sprintf(format, args...)}
}
