package block

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"
)

// SnapshotVersion is the current serialized tree format version.
const SnapshotVersion = 1

// ErrMalformedSnapshot is returned when an import payload fails structural
// checks. Import fails fast; the current store is untouched on error.
var ErrMalformedSnapshot = errors.New("malformed tree snapshot")

// SnapshotMetadata is the envelope stamped on every export.
type SnapshotMetadata struct {
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Snapshot is the full serialized form of an engine: every block, the root
// set, and a version/timestamp envelope.
type Snapshot struct {
	Roots    []string          `json:"roots"`
	Blocks   map[string]*Block `json:"blocks"`
	Metadata SnapshotMetadata  `json:"metadata"`
}

// ExportTree serializes the full store plus root set.
func (e *Engine) ExportTree() *Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	roots := make([]string, 0, len(e.roots))
	for id := range e.roots {
		roots = append(roots, id)
	}
	sort.Strings(roots)

	blocks := make(map[string]*Block, len(e.blocks))
	for id, b := range e.blocks {
		blocks[id] = b.Clone()
	}

	now := time.Now().UTC()
	return &Snapshot{
		Roots:  roots,
		Blocks: blocks,
		Metadata: SnapshotMetadata{
			Version:   SnapshotVersion,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

// ImportTree replaces the entire store with the snapshot's contents. The root
// set is recomputed from blocks lacking a parent. The payload is checked
// before anything is replaced, so a malformed snapshot leaves the engine
// unchanged.
func (e *Engine) ImportTree(snapshot *Snapshot) error {
	if snapshot == nil || snapshot.Blocks == nil {
		return fmt.Errorf("%w: missing blocks", ErrMalformedSnapshot)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	blocks := make(map[string]*Block, len(snapshot.Blocks))
	for id, b := range snapshot.Blocks {
		if b == nil || b.ID == "" {
			return fmt.Errorf("%w: empty block entry %q", ErrMalformedSnapshot, id)
		}
		if b.ID != id {
			return fmt.Errorf("%w: block %q keyed as %q", ErrMalformedSnapshot, b.ID, id)
		}
		if !e.registry.IsRegistered(b.Variant) {
			return fmt.Errorf("%w: block %s has unknown variant %q", ErrMalformedSnapshot, id, b.Variant)
		}
		blocks[id] = b.Clone()
	}
	for id, b := range blocks {
		if b.ParentID != "" {
			parent, ok := blocks[b.ParentID]
			if !ok {
				return fmt.Errorf("%w: block %s references missing parent %s", ErrMalformedSnapshot, id, b.ParentID)
			}
			if n := countChild(parent.Children, id); n != 1 {
				return fmt.Errorf("%w: parent %s lists child %s %d times", ErrMalformedSnapshot, b.ParentID, id, n)
			}
		}
		for _, childID := range b.Children {
			child, ok := blocks[childID]
			if !ok {
				return fmt.Errorf("%w: block %s references missing child %s", ErrMalformedSnapshot, id, childID)
			}
			if child.ParentID != id {
				return fmt.Errorf("%w: block %s lists child %s whose parent is %q", ErrMalformedSnapshot, id, childID, child.ParentID)
			}
		}
	}
	for id := range blocks {
		if err := checkParentChain(blocks, id); err != nil {
			return err
		}
	}

	roots := make(map[string]struct{})
	for id, b := range blocks {
		if b.ParentID == "" {
			roots[id] = struct{}{}
		}
		if b.Children == nil {
			b.Children = []string{}
		}
	}

	e.blocks = blocks
	e.roots = roots
	return nil
}

func countChild(children []string, id string) int {
	n := 0
	for _, childID := range children {
		if childID == id {
			n++
		}
	}
	return n
}

// checkParentChain walks a block's parent chain to a root, rejecting cycles.
// The chain is at most len(blocks) long, so a longer walk means a loop.
func checkParentChain(blocks map[string]*Block, id string) error {
	seen := map[string]struct{}{}
	for cur := blocks[id]; cur.ParentID != ""; cur = blocks[cur.ParentID] {
		if _, ok := seen[cur.ID]; ok {
			return fmt.Errorf("%w: block %s is its own ancestor", ErrMalformedSnapshot, cur.ID)
		}
		seen[cur.ID] = struct{}{}
	}
	return nil
}

// DecodeSnapshot parses a serialized snapshot, failing fast on invalid JSON.
func DecodeSnapshot(payload []byte) (*Snapshot, error) {
	var snapshot Snapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	return &snapshot, nil
}
