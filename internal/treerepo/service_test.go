package treerepo

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func snapshotPayload(label string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{
		"roots": ["blk_root"],
		"blocks": {
			"blk_root": {"id":"blk_root","variant":"page","data":{"title":%q},"children":[]}
		},
		"metadata": {"version":1}
	}`, label))
}

func TestTreeRepoLifecycle(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)

	if err := svc.EnsureTreeRepo("tree-1", snapshotPayload("Home"), "Avery"); err != nil {
		t.Fatalf("EnsureTreeRepo() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "tree-1")); err != nil {
		t.Fatalf("repo directory missing: %v", err)
	}

	// Second ensure is a no-op.
	if err := svc.EnsureTreeRepo("tree-1", snapshotPayload("Other"), "Avery"); err != nil {
		t.Fatalf("EnsureTreeRepo() repeat error = %v", err)
	}

	commit, err := svc.CommitSnapshot("tree-1", snapshotPayload("Updated"), "Avery", "Save snapshot")
	if err != nil {
		t.Fatalf("CommitSnapshot() error = %v", err)
	}
	if commit.Hash == "" {
		t.Fatal("expected commit hash")
	}

	history, err := svc.History("tree-1", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(history))
	}
	if history[0].Hash != commit.Hash {
		t.Fatalf("newest history entry = %s, want %s", history[0].Hash, commit.Hash)
	}

	payload, info, err := svc.SnapshotByHash("tree-1", commit.Hash)
	if err != nil {
		t.Fatalf("SnapshotByHash() error = %v", err)
	}
	if info.Author != "Avery" {
		t.Fatalf("unexpected commit author %q", info.Author)
	}
	if !strings.Contains(string(payload), `"Updated"`) {
		t.Fatalf("unexpected snapshot payload: %s", payload)
	}

	head, headInfo, err := svc.HeadSnapshot("tree-1")
	if err != nil {
		t.Fatalf("HeadSnapshot() error = %v", err)
	}
	if headInfo.Hash != commit.Hash {
		t.Fatalf("head commit = %s, want %s", headInfo.Hash, commit.Hash)
	}
	if !strings.Contains(string(head), `"Updated"`) {
		t.Fatalf("unexpected head payload: %s", head)
	}
}

func TestCommitSnapshotRejectsBadPayload(t *testing.T) {
	svc := New(t.TempDir())
	if err := svc.EnsureTreeRepo("tree-1", snapshotPayload("Home"), "Avery"); err != nil {
		t.Fatalf("EnsureTreeRepo() error = %v", err)
	}
	if _, err := svc.CommitSnapshot("tree-1", json.RawMessage(`{not json`), "Avery", "Broken"); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}

func TestIdenticalSnapshotStillCommits(t *testing.T) {
	svc := New(t.TempDir())
	if err := svc.EnsureTreeRepo("tree-1", snapshotPayload("Home"), "Avery"); err != nil {
		t.Fatalf("EnsureTreeRepo() error = %v", err)
	}
	if _, err := svc.CommitSnapshot("tree-1", snapshotPayload("Home"), "Avery", "Restore point"); err != nil {
		t.Fatalf("CommitSnapshot() identical payload error = %v", err)
	}
	history, err := svc.History("tree-1", 0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 commits, got %d", len(history))
	}
}

func TestConcurrentCommitSnapshots(t *testing.T) {
	svc := New(t.TempDir())
	if err := svc.EnsureTreeRepo("tree-1", snapshotPayload("Home"), "Avery"); err != nil {
		t.Fatalf("EnsureTreeRepo() error = %v", err)
	}

	const writers = 12
	var wg sync.WaitGroup
	errCh := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			if _, err := svc.CommitSnapshot("tree-1", snapshotPayload(fmt.Sprintf("title-%02d", idx)), "Avery", fmt.Sprintf("Commit %02d", idx)); err != nil {
				errCh <- err
			}
		}(i)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil {
			t.Fatalf("CommitSnapshot() concurrent error = %v", err)
		}
	}

	history, err := svc.History("tree-1", 100)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) < writers+1 {
		t.Fatalf("expected at least %d commits, got %d", writers+1, len(history))
	}
}
