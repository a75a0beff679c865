package block

import (
	"time"

	"lattice/api/internal/util"
)

// ValidateFunc checks a variant payload and returns any field-level errors.
// Validators are pure: they never mutate data and never panic.
type ValidateFunc func(data map[string]any) []FieldError

// Schema is the registry's record for one variant: its defaults, structural
// constraints, and validator. Schemas carry no tree state.
type Schema struct {
	Variant         Variant
	Name            string
	Description     string
	Category        Category
	CanHaveChildren bool
	// AllowedChildren, when non-empty, restricts which variants may appear
	// under this one. Empty means open (any child), provided CanHaveChildren.
	AllowedChildren []Variant
	// AllowedParents, when non-empty, restricts which variants this one may
	// appear under. Empty means open.
	AllowedParents []Variant
	Defaults       map[string]any
	Validate       ValidateFunc
}

func (s *Schema) allowsChild(child Variant) bool {
	if !s.CanHaveChildren {
		return false
	}
	if len(s.AllowedChildren) == 0 {
		return true
	}
	for _, v := range s.AllowedChildren {
		if v == child {
			return true
		}
	}
	return false
}

func (s *Schema) allowsParent(parent Variant) bool {
	if len(s.AllowedParents) == 0 {
		return true
	}
	for _, v := range s.AllowedParents {
		if v == parent {
			return true
		}
	}
	return false
}

// Registry maps variants to their schemas. It is a stateless lookup table;
// it never holds block references.
type Registry struct {
	schemas map[Variant]*Schema
}

// NewRegistry builds a registry holding the given schemas.
func NewRegistry(schemas ...*Schema) *Registry {
	r := &Registry{schemas: make(map[Variant]*Schema, len(schemas))}
	for _, s := range schemas {
		r.schemas[s.Variant] = s
	}
	return r
}

// DefaultRegistry returns a registry with every built-in variant registered.
func DefaultRegistry() *Registry {
	return NewRegistry(builtinSchemas()...)
}

// IsRegistered reports whether a schema exists for the variant.
func (r *Registry) IsRegistered(variant Variant) bool {
	_, ok := r.schemas[variant]
	return ok
}

// Get returns the schema for a variant, or nil if none is registered.
func (r *Registry) Get(variant Variant) *Schema {
	return r.schemas[variant]
}

// Variants lists all registered variants.
func (r *Registry) Variants() []Variant {
	out := make([]Variant, 0, len(r.schemas))
	for v := range r.schemas {
		out = append(out, v)
	}
	return out
}

// Validate runs the variant's validator against data. Unknown variants are
// reported as a single field error rather than an error return, so callers
// always get a structured result.
func (r *Registry) Validate(variant Variant, data map[string]any) ValidationResult {
	schema, ok := r.schemas[variant]
	if !ok {
		return invalidResult([]FieldError{{
			Field:   "variant",
			Message: "unknown variant " + string(variant),
			Code:    "unknown_variant",
		}})
	}
	if schema.Validate == nil {
		return validResult()
	}
	if errs := schema.Validate(data); len(errs) > 0 {
		return invalidResult(errs)
	}
	return validResult()
}

// CanHaveChild reports whether parent's schema accepts child below it.
func (r *Registry) CanHaveChild(parent, child Variant) bool {
	schema, ok := r.schemas[parent]
	if !ok {
		return false
	}
	return schema.allowsChild(child)
}

// CanHaveParent reports whether child's schema accepts parent above it.
func (r *Registry) CanHaveParent(child, parent Variant) bool {
	schema, ok := r.schemas[child]
	if !ok {
		return false
	}
	return schema.allowsParent(parent)
}

// NewBlock builds a detached block for the variant: caller data is merged
// over schema defaults, id/timestamps/version are stamped, and children start
// empty. The registry does not touch any tree.
func (r *Registry) NewBlock(variant Variant, data, metadata map[string]any) *Block {
	schema := r.schemas[variant]
	payload := map[string]any{}
	if schema != nil {
		payload = cloneMap(schema.Defaults)
		if payload == nil {
			payload = map[string]any{}
		}
	}
	for key, value := range data {
		payload[key] = value
	}

	now := time.Now().UTC()
	return &Block{
		ID:        util.NewID("blk"),
		Variant:   variant,
		Data:      payload,
		Children:  []string{},
		Metadata:  cloneMap(metadata),
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}
}
