package block

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FieldError describes a single invalid field in a block payload.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// ValidationResult is the structured outcome of validating a payload against
// a variant schema. Validators never panic; they always return a result.
type ValidationResult struct {
	Valid  bool         `json:"valid"`
	Errors []FieldError `json:"errors"`
}

func validResult() ValidationResult {
	return ValidationResult{Valid: true, Errors: []FieldError{}}
}

func invalidResult(errs []FieldError) ValidationResult {
	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// Validation error codes shared by all variant validators.
const (
	codeRequired    = "required"
	codeOutOfRange  = "out_of_range"
	codeInvalidEnum = "invalid_enum"
	codeInvalidJSON = "invalid_json"
	codeInvalidType = "invalid_type"
)

func fieldRequired(field string) FieldError {
	return FieldError{Field: field, Message: field + " is required", Code: codeRequired}
}

// requireContent checks that data[field] is a non-empty string.
func requireContent(data map[string]any, field string) []FieldError {
	raw, ok := data[field]
	if !ok {
		return []FieldError{fieldRequired(field)}
	}
	text, ok := raw.(string)
	if !ok {
		return []FieldError{{Field: field, Message: field + " must be a string", Code: codeInvalidType}}
	}
	if strings.TrimSpace(text) == "" {
		return []FieldError{fieldRequired(field)}
	}
	return nil
}

// numberField reads data[field] as a float64, accepting the numeric types
// JSON decoding and callers commonly produce.
func numberField(data map[string]any, field string) (float64, bool, []FieldError) {
	raw, ok := data[field]
	if !ok || raw == nil {
		return 0, false, nil
	}
	switch v := raw.(type) {
	case float64:
		return v, true, nil
	case float32:
		return float64(v), true, nil
	case int:
		return float64(v), true, nil
	case int64:
		return float64(v), true, nil
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false, []FieldError{{Field: field, Message: field + " must be a number", Code: codeInvalidType}}
		}
		return parsed, true, nil
	default:
		return 0, false, []FieldError{{Field: field, Message: field + " must be a number", Code: codeInvalidType}}
	}
}

// rangeField checks that data[field], when present, is a number within
// [min, max]. Absent fields pass.
func rangeField(data map[string]any, field string, min, max float64) []FieldError {
	value, present, errs := numberField(data, field)
	if errs != nil {
		return errs
	}
	if !present {
		return nil
	}
	if value < min || value > max {
		return []FieldError{{
			Field:   field,
			Message: fmt.Sprintf("%s must be between %v and %v", field, min, max),
			Code:    codeOutOfRange,
		}}
	}
	return nil
}

// minField checks that data[field], when present, is a number >= min.
func minField(data map[string]any, field string, min float64) []FieldError {
	value, present, errs := numberField(data, field)
	if errs != nil {
		return errs
	}
	if !present {
		return nil
	}
	if value < min {
		return []FieldError{{
			Field:   field,
			Message: fmt.Sprintf("%s must be at least %v", field, min),
			Code:    codeOutOfRange,
		}}
	}
	return nil
}

// intMinField checks that data[field], when present, is a whole number >= min.
func intMinField(data map[string]any, field string, min int) []FieldError {
	value, present, errs := numberField(data, field)
	if errs != nil {
		return errs
	}
	if !present {
		return nil
	}
	if value != float64(int64(value)) {
		return []FieldError{{Field: field, Message: field + " must be an integer", Code: codeInvalidType}}
	}
	if value < float64(min) {
		return []FieldError{{
			Field:   field,
			Message: fmt.Sprintf("%s must be at least %d", field, min),
			Code:    codeOutOfRange,
		}}
	}
	return nil
}

// enumField checks that data[field], when present, is one of allowed.
func enumField(data map[string]any, field string, allowed ...string) []FieldError {
	raw, ok := data[field]
	if !ok || raw == nil {
		return nil
	}
	text, ok := raw.(string)
	if !ok {
		return []FieldError{{Field: field, Message: field + " must be a string", Code: codeInvalidType}}
	}
	for _, candidate := range allowed {
		if text == candidate {
			return nil
		}
	}
	return []FieldError{{
		Field:   field,
		Message: fmt.Sprintf("%s must be one of: %s", field, strings.Join(allowed, ", ")),
		Code:    codeInvalidEnum,
	}}
}

// jsonField checks that data[field], when present as a string, parses as JSON.
// Values that are already structured (maps, slices) pass.
func jsonField(data map[string]any, field string) []FieldError {
	raw, ok := data[field]
	if !ok || raw == nil {
		return nil
	}
	switch v := raw.(type) {
	case string:
		if !json.Valid([]byte(v)) {
			return []FieldError{{Field: field, Message: field + " must be valid JSON", Code: codeInvalidJSON}}
		}
		return nil
	case map[string]any, []any:
		return nil
	default:
		return []FieldError{{Field: field, Message: field + " must be valid JSON", Code: codeInvalidJSON}}
	}
}
