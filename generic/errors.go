/*
errors.go - Centralized error types for the engine

PURPOSE:
  All shared error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Lookup errors - Missing programs or customers in an input store
  2. Input errors - Malformed request values (month keys, columns)
  3. Configuration errors - Program definitions that break the bracket contract

WHAT IS NOT AN ERROR:
  Malformed order fields and unparseable order dates are absorbed by the
  parser and simulator. They never surface here.

USAGE:
  if errors.Is(err, generic.ErrProgramNotFound) {
      // 404
  }

SEE ALSO:
  - cashback/program.go: Wraps configuration errors in ProgramError
  - store/sqlite/sqlite.go: Returns lookup errors
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrProgramNotFound is returned when a referenced program doesn't exist.
	ErrProgramNotFound = errors.New("program not found")

	// ErrCustomerNotFound is returned when a referenced customer doesn't exist.
	ErrCustomerNotFound = errors.New("customer not found")

	// ErrInvalidMonth is returned for month keys that are not "YYYY-MM".
	ErrInvalidMonth = errors.New("invalid month key")

	// ErrMissingColumn is returned when an input table lacks a required column.
	ErrMissingColumn = errors.New("missing required column")

	// ErrInvalidProgram is the umbrella for every program configuration violation.
	ErrInvalidProgram = errors.New("invalid program")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// MonthError names the offending month key.
type MonthError struct {
	Month string
}

func (e *MonthError) Error() string {
	return fmt.Sprintf("invalid month key %q: want YYYY-MM", e.Month)
}

func (e *MonthError) Unwrap() error {
	return ErrInvalidMonth
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidMonth) ||
		errors.Is(err, ErrMissingColumn) ||
		errors.Is(err, ErrInvalidProgram)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProgramNotFound) ||
		errors.Is(err, ErrCustomerNotFound)
}
