package block

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for conditions that carry no extra structure beyond the
// block id, which wrapping adds.
var (
	ErrNotFound       = errors.New("block not found")
	ErrParentNotFound = errors.New("parent block not found")
	ErrCycleDetected  = errors.New("move would create a cycle")
	ErrHasChildren    = errors.New("block has children; cascade required")
)

// UnknownVariantError is returned when an operation names a variant the
// registry has no schema for.
type UnknownVariantError struct {
	Variant Variant
}

func (e *UnknownVariantError) Error() string {
	return fmt.Sprintf("unknown block variant %q", e.Variant)
}

// ValidationError carries the field-level errors produced by a variant
// validator.
type ValidationError struct {
	Variant Variant
	Fields  []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, fe := range e.Fields {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return fmt.Sprintf("invalid %s block: %s", e.Variant, strings.Join(parts, "; "))
}

// IncompatibleRelationshipError is returned when either side of the
// parent/child constraint check rejects the pairing.
type IncompatibleRelationshipError struct {
	Parent Variant
	Child  Variant
}

func (e *IncompatibleRelationshipError) Error() string {
	return fmt.Sprintf("variant %s cannot be a child of %s", e.Child, e.Parent)
}
