package block

import "time"

// Block is a single node in the content tree. Blocks are created only through
// the engine; the engine owns the store and keeps parent/children
// back-references consistent.
type Block struct {
	ID        string         `json:"id"`
	Variant   Variant        `json:"variant"`
	Data      map[string]any `json:"data"`
	ParentID  string         `json:"parentId,omitempty"`
	Children  []string       `json:"children"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	Version   int            `json:"version"`
}

// Clone returns a deep copy so callers can never reach into the engine's
// live store through a returned block.
func (b *Block) Clone() *Block {
	if b == nil {
		return nil
	}
	clone := *b
	clone.Data = cloneMap(b.Data)
	clone.Metadata = cloneMap(b.Metadata)
	clone.Children = append([]string(nil), b.Children...)
	return &clone
}

func cloneMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for key, value := range src {
		switch typed := value.(type) {
		case map[string]any:
			dst[key] = cloneMap(typed)
		case []any:
			dst[key] = cloneSlice(typed)
		default:
			dst[key] = value
		}
	}
	return dst
}

func cloneSlice(src []any) []any {
	dst := make([]any, len(src))
	for i, value := range src {
		switch typed := value.(type) {
		case map[string]any:
			dst[i] = cloneMap(typed)
		case []any:
			dst[i] = cloneSlice(typed)
		default:
			dst[i] = value
		}
	}
	return dst
}

// mergeData lays patch keys over base without mutating either input.
func mergeData(base, patch map[string]any) map[string]any {
	merged := cloneMap(base)
	if merged == nil {
		merged = map[string]any{}
	}
	for key, value := range patch {
		merged[key] = value
	}
	return merged
}

// mergeMetadata shallow-merges top-level keys, except for the permissions
// sub-object which is deep-merged so a partial permissions patch cannot wipe
// grants it does not mention.
func mergeMetadata(base, patch map[string]any) map[string]any {
	merged := cloneMap(base)
	if merged == nil {
		merged = map[string]any{}
	}
	for key, value := range patch {
		if key == "permissions" {
			existing, okExisting := merged[key].(map[string]any)
			incoming, okIncoming := value.(map[string]any)
			if okExisting && okIncoming {
				merged[key] = deepMerge(existing, incoming)
				continue
			}
		}
		merged[key] = value
	}
	return merged
}

func deepMerge(base, patch map[string]any) map[string]any {
	merged := cloneMap(base)
	for key, value := range patch {
		existing, okExisting := merged[key].(map[string]any)
		incoming, okIncoming := value.(map[string]any)
		if okExisting && okIncoming {
			merged[key] = deepMerge(existing, incoming)
			continue
		}
		merged[key] = value
	}
	return merged
}
