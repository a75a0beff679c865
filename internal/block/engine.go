package block

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Engine owns the live tree: a flat store of blocks plus the set of root ids.
// Every mutating operation validates against the registry before touching the
// store, so a failed call never leaves partial state behind.
//
// A single RWMutex serializes mutations per engine instance; pure reads run
// concurrently with each other but never with a mutation.
type Engine struct {
	registry *Registry

	mu     sync.RWMutex
	blocks map[string]*Block
	roots  map[string]struct{}
}

// NewEngine creates an empty engine. A nil registry means the built-in one.
func NewEngine(registry *Registry) *Engine {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Engine{
		registry: registry,
		blocks:   make(map[string]*Block),
		roots:    make(map[string]struct{}),
	}
}

// Registry exposes the schema registry the engine validates against.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// CreateParams are the inputs to Create. Position nil appends at the end of
// the parent's children.
type CreateParams struct {
	Variant  Variant        `json:"variant"`
	Data     map[string]any `json:"data"`
	ParentID string         `json:"parentId"`
	Metadata map[string]any `json:"metadata"`
	Position *int           `json:"position"`
}

// Create validates params against the registry, builds the block, and splices
// it into the tree. The returned block is a copy.
func (e *Engine) Create(params CreateParams) (*Block, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.registry.IsRegistered(params.Variant) {
		return nil, &UnknownVariantError{Variant: params.Variant}
	}

	candidate := mergeData(e.registry.Get(params.Variant).Defaults, params.Data)
	if result := e.registry.Validate(params.Variant, candidate); !result.Valid {
		return nil, &ValidationError{Variant: params.Variant, Fields: result.Errors}
	}

	var parent *Block
	if params.ParentID != "" {
		var ok bool
		parent, ok = e.blocks[params.ParentID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrParentNotFound, params.ParentID)
		}
		if !e.registry.CanHaveChild(parent.Variant, params.Variant) ||
			!e.registry.CanHaveParent(params.Variant, parent.Variant) {
			return nil, &IncompatibleRelationshipError{Parent: parent.Variant, Child: params.Variant}
		}
	}

	created := e.registry.NewBlock(params.Variant, params.Data, params.Metadata)
	e.blocks[created.ID] = created

	if parent != nil {
		created.ParentID = parent.ID
		parent.Children = spliceChild(parent.Children, created.ID, params.Position)
		e.touch(parent)
	} else {
		e.roots[created.ID] = struct{}{}
	}

	return created.Clone(), nil
}

// Get returns a copy of the block, or nil if absent.
func (e *Engine) Get(id string) *Block {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.blocks[id].Clone()
}

// GetMany returns copies of the blocks that exist; absent ids are omitted.
func (e *Engine) GetMany(ids []string) []*Block {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*Block, 0, len(ids))
	for _, id := range ids {
		if b, ok := e.blocks[id]; ok {
			out = append(out, b.Clone())
		}
	}
	return out
}

// QueryOptions filter Query and Search results. Zero values mean no filter.
type QueryOptions struct {
	Variant  Variant
	ParentID string
}

// SearchOptions extend QueryOptions with case-insensitive text matching over
// the serialized data payload and offset/limit pagination.
type SearchOptions struct {
	QueryOptions
	Text   string
	Offset int
	Limit  int
}

// Query scans the store and returns copies of every block matching the
// filters, ordered by creation time.
func (e *Engine) Query(opts QueryOptions) []*Block {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.scan(opts, "", 0, 0)
}

// Search is Query plus text matching and pagination. Slicing happens after
// filtering, so offset/limit address the filtered result set.
func (e *Engine) Search(opts SearchOptions) []*Block {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.scan(opts.QueryOptions, opts.Text, opts.Offset, opts.Limit)
}

func (e *Engine) scan(opts QueryOptions, text string, offset, limit int) []*Block {
	needle := strings.ToLower(strings.TrimSpace(text))
	matched := make([]*Block, 0)
	for _, b := range e.blocks {
		if opts.Variant != "" && b.Variant != opts.Variant {
			continue
		}
		if opts.ParentID != "" && b.ParentID != opts.ParentID {
			continue
		}
		if needle != "" {
			serialized, err := json.Marshal(b.Data)
			if err != nil || !strings.Contains(strings.ToLower(string(serialized)), needle) {
				continue
			}
		}
		matched = append(matched, b)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	if offset < 0 {
		offset = 0
	}
	if offset > len(matched) {
		offset = len(matched)
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}

	out := make([]*Block, len(matched))
	for i, b := range matched {
		out[i] = b.Clone()
	}
	return out
}

// Children returns copies of a block's children in order. With recursive set,
// the whole subtree is returned depth-first. Missing ids yield nil.
func (e *Engine) Children(id string, recursive bool) []*Block {
	e.mu.RLock()
	defer e.mu.RUnlock()
	node, ok := e.blocks[id]
	if !ok {
		return nil
	}
	out := make([]*Block, 0, len(node.Children))
	e.collectChildren(node, recursive, &out)
	return out
}

func (e *Engine) collectChildren(node *Block, recursive bool, out *[]*Block) {
	for _, childID := range node.Children {
		child, ok := e.blocks[childID]
		if !ok {
			continue
		}
		*out = append(*out, child.Clone())
		if recursive {
			e.collectChildren(child, true, out)
		}
	}
}

// Parent returns a copy of the block's parent, or nil for roots and missing
// ids.
func (e *Engine) Parent(id string) *Block {
	e.mu.RLock()
	defer e.mu.RUnlock()
	node, ok := e.blocks[id]
	if !ok || node.ParentID == "" {
		return nil
	}
	return e.blocks[node.ParentID].Clone()
}

// Ancestors walks the parent chain from the block to its root, nearest first.
func (e *Engine) Ancestors(id string) []*Block {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := []*Block{}
	node, ok := e.blocks[id]
	if !ok {
		return out
	}
	for node.ParentID != "" {
		parent, ok := e.blocks[node.ParentID]
		if !ok {
			break
		}
		out = append(out, parent.Clone())
		node = parent
	}
	return out
}

// Roots returns copies of every root block, ordered by creation time.
func (e *Engine) Roots() []*Block {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*Block, 0, len(e.roots))
	for id := range e.roots {
		if b, ok := e.blocks[id]; ok {
			out = append(out, b.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// UpdateParams are the inputs to Update. Data is merged over the existing
// payload and the merged result is revalidated; Metadata is shallow-merged
// with a deep merge for the permissions sub-object.
type UpdateParams struct {
	ID       string         `json:"id"`
	Data     map[string]any `json:"data"`
	Metadata map[string]any `json:"metadata"`
}

// Update applies a data/metadata patch. The returned block is a copy.
func (e *Engine) Update(params UpdateParams) (*Block, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	node, ok := e.blocks[params.ID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, params.ID)
	}

	if params.Data != nil {
		merged := mergeData(node.Data, params.Data)
		if result := e.registry.Validate(node.Variant, merged); !result.Valid {
			return nil, &ValidationError{Variant: node.Variant, Fields: result.Errors}
		}
		node.Data = merged
	}
	if params.Metadata != nil {
		node.Metadata = mergeMetadata(node.Metadata, params.Metadata)
	}
	e.touch(node)
	return node.Clone(), nil
}

// MoveParams are the inputs to Move. An empty NewParentID moves the block to
// the root set. Position nil appends at the end.
type MoveParams struct {
	ID          string `json:"id"`
	NewParentID string `json:"newParentId"`
	Position    *int   `json:"position"`
}

// Move reparents a block. The cycle check walks up from the candidate parent
// looking for the moving block's id, which rejects any destination inside the
// subtree being moved.
func (e *Engine) Move(params MoveParams) (*Block, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	node, ok := e.blocks[params.ID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, params.ID)
	}

	var newParent *Block
	if params.NewParentID != "" {
		newParent, ok = e.blocks[params.NewParentID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrParentNotFound, params.NewParentID)
		}
		if params.NewParentID == params.ID {
			return nil, fmt.Errorf("%w: %s", ErrCycleDetected, params.ID)
		}
		for ancestor := newParent; ancestor.ParentID != ""; {
			if ancestor.ParentID == params.ID {
				return nil, fmt.Errorf("%w: %s", ErrCycleDetected, params.ID)
			}
			ancestor, ok = e.blocks[ancestor.ParentID]
			if !ok {
				break
			}
		}
		if !e.registry.CanHaveChild(newParent.Variant, node.Variant) ||
			!e.registry.CanHaveParent(node.Variant, newParent.Variant) {
			return nil, &IncompatibleRelationshipError{Parent: newParent.Variant, Child: node.Variant}
		}
	}

	e.detach(node)
	if newParent != nil {
		node.ParentID = newParent.ID
		newParent.Children = spliceChild(newParent.Children, node.ID, params.Position)
		e.touch(newParent)
	} else {
		node.ParentID = ""
		e.roots[node.ID] = struct{}{}
	}
	e.touch(node)
	return node.Clone(), nil
}

// DeleteParams are the inputs to Delete. Cascade authorizes removing the
// whole subtree; without it a block with children is rejected.
type DeleteParams struct {
	ID      string `json:"id"`
	Cascade bool   `json:"cascade"`
}

// Delete removes a block, and with cascade its entire subtree depth-first.
func (e *Engine) Delete(params DeleteParams) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	node, ok := e.blocks[params.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, params.ID)
	}
	if len(node.Children) > 0 && !params.Cascade {
		return fmt.Errorf("%w: %s", ErrHasChildren, params.ID)
	}

	e.detach(node)
	e.removeSubtree(node)
	return nil
}

func (e *Engine) removeSubtree(node *Block) {
	for _, childID := range node.Children {
		if child, ok := e.blocks[childID]; ok {
			e.removeSubtree(child)
		}
	}
	delete(e.blocks, node.ID)
	delete(e.roots, node.ID)
}

// DuplicateParams are the inputs to Duplicate. Cascade copies the whole
// subtree; without it the duplicate has no children.
type DuplicateParams struct {
	ID      string `json:"id"`
	Cascade bool   `json:"cascade"`
}

// Duplicate copies a block next to the original, under the same parent. With
// cascade, the subtree is cloned bottom-up as detached blocks and only the
// completed copy is attached, so constraints never see a half-built subtree.
func (e *Engine) Duplicate(params DuplicateParams) (*Block, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	node, ok := e.blocks[params.ID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, params.ID)
	}

	clone := e.cloneSubtree(node, params.Cascade)

	if node.ParentID != "" {
		parent := e.blocks[node.ParentID]
		clone.ParentID = parent.ID
		parent.Children = spliceChild(parent.Children, clone.ID, nil)
		e.touch(parent)
	} else {
		e.roots[clone.ID] = struct{}{}
	}
	return clone.Clone(), nil
}

func (e *Engine) cloneSubtree(node *Block, cascade bool) *Block {
	clone := e.registry.NewBlock(node.Variant, node.Data, node.Metadata)
	e.blocks[clone.ID] = clone
	if !cascade {
		return clone
	}
	for _, childID := range node.Children {
		child, ok := e.blocks[childID]
		if !ok {
			continue
		}
		childClone := e.cloneSubtree(child, true)
		childClone.ParentID = clone.ID
		clone.Children = append(clone.Children, childClone.ID)
	}
	return clone
}

// Clear empties the store and root set.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.blocks = make(map[string]*Block)
	e.roots = make(map[string]struct{})
}

// Count returns the number of stored blocks.
func (e *Engine) Count() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.blocks)
}

// detach removes the node from its parent's children list or the root set.
// The node itself stays in the store.
func (e *Engine) detach(node *Block) {
	if node.ParentID == "" {
		delete(e.roots, node.ID)
		return
	}
	parent, ok := e.blocks[node.ParentID]
	if !ok {
		return
	}
	for i, childID := range parent.Children {
		if childID == node.ID {
			parent.Children = append(parent.Children[:i], parent.Children[i+1:]...)
			break
		}
	}
	e.touch(parent)
}

// touch refreshes the updatedAt timestamp and bumps the informational version
// counter.
func (e *Engine) touch(node *Block) {
	node.UpdatedAt = time.Now().UTC()
	node.Version++
}

// spliceChild inserts id into children at position, clamped to the valid
// range. A nil position appends.
func spliceChild(children []string, id string, position *int) []string {
	if position == nil || *position >= len(children) {
		return append(children, id)
	}
	at := *position
	if at < 0 {
		at = 0
	}
	out := make([]string, 0, len(children)+1)
	out = append(out, children[:at]...)
	out = append(out, id)
	out = append(out, children[at:]...)
	return out
}
