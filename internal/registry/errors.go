package registry

import "fmt"

// ValidationError reports a channel create/update payload that violates
// a structural rule (field shape, cardinality, eatup reference). The
// operation is rejected synchronously; nothing is written.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", e.Reason)
}

// ConstraintViolation reports a membership mutation that would break
// the kind-specific cardinality rule. State is left unchanged.
type ConstraintViolation struct {
	Reason string
}

func (e *ConstraintViolation) Error() string {
	return fmt.Sprintf("constraint violation: %s", e.Reason)
}

func validationf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

func constraintf(format string, args ...any) error {
	return &ConstraintViolation{Reason: fmt.Sprintf(format, args...)}
}
