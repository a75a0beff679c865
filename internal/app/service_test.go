package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"lattice/api/internal/block"
	"lattice/api/internal/config"
	"lattice/api/internal/export"
	"lattice/api/internal/search"
	"lattice/api/internal/store"
	"lattice/api/internal/treerepo"
)

type fakeStore struct {
	pingFn               func(context.Context) error
	getUserByIDFn        func(context.Context, string) (store.User, error)
	saveTreeSnapshotFn   func(context.Context, store.TreeSnapshotRecord) (int64, error)
	latestTreeSnapshotFn func(context.Context, string) (store.TreeSnapshotRecord, error)
	insertHabitFn        func(context.Context, store.Habit) error
	logHabitFn           func(context.Context, string, string) (store.Habit, error)
	insertQuoteFn        func(context.Context, store.Quote) error
}

func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}
func (f *fakeStore) CreateUser(context.Context, store.User) error { return nil }
func (f *fakeStore) GetUserByID(ctx context.Context, userID string) (store.User, error) {
	if f.getUserByIDFn != nil {
		return f.getUserByIDFn(ctx, userID)
	}
	return store.User{ID: userID, DisplayName: "Tester", Role: "editor"}, nil
}
func (f *fakeStore) GetUserByEmail(context.Context, string) (store.User, error) {
	return store.User{}, sql.ErrNoRows
}
func (f *fakeStore) SaveTreeSnapshot(ctx context.Context, record store.TreeSnapshotRecord) (int64, error) {
	if f.saveTreeSnapshotFn != nil {
		return f.saveTreeSnapshotFn(ctx, record)
	}
	return 1, nil
}
func (f *fakeStore) LatestTreeSnapshot(ctx context.Context, treeID string) (store.TreeSnapshotRecord, error) {
	if f.latestTreeSnapshotFn != nil {
		return f.latestTreeSnapshotFn(ctx, treeID)
	}
	return store.TreeSnapshotRecord{}, sql.ErrNoRows
}
func (f *fakeStore) ListTreeSnapshots(context.Context, string, int) ([]store.TreeSnapshotRecord, error) {
	return nil, nil
}
func (f *fakeStore) InsertHabit(ctx context.Context, habit store.Habit) error {
	if f.insertHabitFn != nil {
		return f.insertHabitFn(ctx, habit)
	}
	return nil
}
func (f *fakeStore) GetHabit(context.Context, string) (store.Habit, error) {
	return store.Habit{}, sql.ErrNoRows
}
func (f *fakeStore) ListHabits(context.Context) ([]store.Habit, error) { return nil, nil }
func (f *fakeStore) UpdateHabit(context.Context, string, string, string, string) error {
	return nil
}
func (f *fakeStore) DeleteHabit(context.Context, string) error { return nil }
func (f *fakeStore) LogHabit(ctx context.Context, habitID, note string) (store.Habit, error) {
	if f.logHabitFn != nil {
		return f.logHabitFn(ctx, habitID, note)
	}
	return store.Habit{ID: habitID, Streak: 1}, nil
}
func (f *fakeStore) InsertQuote(ctx context.Context, quote store.Quote) error {
	if f.insertQuoteFn != nil {
		return f.insertQuoteFn(ctx, quote)
	}
	return nil
}
func (f *fakeStore) ListQuotes(context.Context) ([]store.Quote, error) { return nil, nil }
func (f *fakeStore) DeleteQuote(context.Context, string) error         { return nil }
func (f *fakeStore) InsertAttachment(context.Context, store.Attachment) error {
	return nil
}
func (f *fakeStore) GetAttachmentByKey(context.Context, string) (store.Attachment, error) {
	return store.Attachment{}, sql.ErrNoRows
}

type fakeSessions struct {
	tokens map[string]string // tokenHash -> userID
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{tokens: map[string]string{}}
}

func (f *fakeSessions) SaveRefreshSession(_ context.Context, tokenHash, userID string, _ time.Time) error {
	f.tokens[tokenHash] = userID
	return nil
}

func (f *fakeSessions) LookupRefreshSession(_ context.Context, tokenHash string) (store.User, error) {
	userID, ok := f.tokens[tokenHash]
	if !ok {
		return store.User{}, errors.New("token not found or expired")
	}
	return store.User{ID: userID}, nil
}

func (f *fakeSessions) RevokeRefreshSession(_ context.Context, tokenHash string) error {
	delete(f.tokens, tokenHash)
	return nil
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		JWTSecret:    "test-secret",
		AccessTTL:    15 * time.Minute,
		RefreshTTL:   24 * time.Hour,
		TreeID:       "default",
		SnapshotsDir: t.TempDir(),
	}
}

func newTestService(t *testing.T, fs *fakeStore) (*Service, *fakeSessions, *block.Engine) {
	t.Helper()
	if fs == nil {
		fs = &fakeStore{}
	}
	cfg := testConfig(t)
	engine := block.NewEngine(nil)
	sessions := newFakeSessions()
	svc := NewService(
		cfg,
		fs,
		sessions,
		engine,
		treerepo.New(cfg.SnapshotsDir),
		search.NewService(nil, engine),
		nil,
		export.NewService(engine),
		nil,
	)
	return svc, sessions, engine
}

func TestSessionLifecycle(t *testing.T) {
	svc, sessions, _ := newTestService(t, nil)
	ctx := context.Background()

	created, err := svc.CreateSession(ctx, "usr_1")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if created.Token == "" || created.RefreshToken == "" {
		t.Fatal("expected access and refresh tokens")
	}
	if len(sessions.tokens) != 1 {
		t.Fatalf("expected 1 stored refresh session, got %d", len(sessions.tokens))
	}

	parsed, err := svc.SessionFromToken(ctx, created.Token)
	if err != nil {
		t.Fatalf("SessionFromToken failed: %v", err)
	}
	if parsed.UserID != "usr_1" || parsed.Role != "editor" {
		t.Fatalf("unexpected session %+v", parsed)
	}

	refreshed, err := svc.Refresh(ctx, created.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if refreshed.RefreshToken == created.RefreshToken {
		t.Fatal("refresh token was not rotated")
	}
	// The old token is single-use.
	if _, err := svc.Refresh(ctx, created.RefreshToken); err == nil {
		t.Fatal("expected error reusing rotated refresh token")
	}

	if err := svc.Logout(ctx, refreshed.RefreshToken); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if len(sessions.tokens) != 0 {
		t.Fatalf("expected all refresh sessions revoked, got %d", len(sessions.tokens))
	}
}

func TestCreateBlockIndexesAndValidates(t *testing.T) {
	svc, _, engine := newTestService(t, nil)

	created, err := svc.CreateBlock(CreateBlockInput{
		Variant: "page",
		Data:    map[string]any{"title": "Home"},
	})
	if err != nil {
		t.Fatalf("CreateBlock failed: %v", err)
	}
	if engine.Get(created.ID) == nil {
		t.Fatal("block missing from engine")
	}

	_, err = svc.CreateBlock(CreateBlockInput{Variant: "heading", Data: map[string]any{"content": "x", "level": 9}})
	var validationErr *block.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestSaveAndRestoreSnapshot(t *testing.T) {
	var saved []store.TreeSnapshotRecord
	fs := &fakeStore{
		saveTreeSnapshotFn: func(_ context.Context, record store.TreeSnapshotRecord) (int64, error) {
			saved = append(saved, record)
			return int64(len(saved)), nil
		},
	}
	svc, _, engine := newTestService(t, fs)
	ctx := context.Background()
	session := Session{UserID: "usr_1", UserName: "Tester"}

	page, err := svc.CreateBlock(CreateBlockInput{Variant: "page", Data: map[string]any{"title": "Home"}})
	if err != nil {
		t.Fatalf("CreateBlock failed: %v", err)
	}
	if _, err := svc.CreateBlock(CreateBlockInput{
		Variant:  "text",
		Data:     map[string]any{"content": "hello"},
		ParentID: page.ID,
	}); err != nil {
		t.Fatalf("CreateBlock child failed: %v", err)
	}

	info, err := svc.SaveSnapshot(ctx, session, "Checkpoint")
	if err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	if info.CommitHash == "" || info.BlockCount != 2 {
		t.Fatalf("unexpected snapshot info %+v", info)
	}
	if len(saved) != 1 || saved[0].BlockCount != 2 {
		t.Fatalf("snapshot row not persisted: %+v", saved)
	}

	// Mutate the tree, then restore the checkpoint.
	if err := svc.DeleteBlock(page.ID, true); err != nil {
		t.Fatalf("DeleteBlock failed: %v", err)
	}
	if engine.Count() != 0 {
		t.Fatalf("expected empty engine, have %d blocks", engine.Count())
	}

	restored, err := svc.RestoreSnapshot(ctx, session, info.CommitHash)
	if err != nil {
		t.Fatalf("RestoreSnapshot failed: %v", err)
	}
	if restored.BlockCount != 2 {
		t.Fatalf("restored snapshot info %+v", restored)
	}
	if engine.Count() != 2 {
		t.Fatalf("expected 2 blocks after restore, have %d", engine.Count())
	}
	if engine.Get(page.ID) == nil {
		t.Fatal("restored tree missing original page")
	}

	history, err := svc.SnapshotHistory(10)
	if err != nil {
		t.Fatalf("SnapshotHistory failed: %v", err)
	}
	if len(history) < 2 {
		t.Fatalf("expected restore commit in history, got %d entries", len(history))
	}
}

func TestRestoreUnknownSnapshot(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	session := Session{UserID: "usr_1", UserName: "Tester"}

	if _, err := svc.SaveSnapshot(context.Background(), session, ""); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	_, err := svc.RestoreSnapshot(context.Background(), session, "deadbee")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != http.StatusNotFound {
		t.Fatalf("expected 404 DomainError, got %v", err)
	}
}

func TestHydrateFromLatest(t *testing.T) {
	seed := block.NewEngine(nil)
	page, err := seed.Create(block.CreateParams{Variant: block.VariantPage, Data: map[string]any{"title": "Persisted"}})
	if err != nil {
		t.Fatalf("seed create: %v", err)
	}
	payload, err := json.Marshal(seed.ExportTree())
	if err != nil {
		t.Fatalf("marshal seed snapshot: %v", err)
	}

	fs := &fakeStore{
		latestTreeSnapshotFn: func(context.Context, string) (store.TreeSnapshotRecord, error) {
			return store.TreeSnapshotRecord{TreeID: "default", Payload: payload, BlockCount: 1}, nil
		},
	}
	svc, _, engine := newTestService(t, fs)

	if err := svc.HydrateFromLatest(context.Background()); err != nil {
		t.Fatalf("HydrateFromLatest failed: %v", err)
	}
	if engine.Get(page.ID) == nil {
		t.Fatal("hydrated engine missing persisted block")
	}
}

func TestHydrateFromLatestEmptyStore(t *testing.T) {
	svc, _, engine := newTestService(t, nil)
	if err := svc.HydrateFromLatest(context.Background()); err != nil {
		t.Fatalf("expected clean start on empty store, got %v", err)
	}
	if engine.Count() != 0 {
		t.Fatalf("expected empty engine, have %d", engine.Count())
	}
}

func TestUploadAttachmentWithoutMedia(t *testing.T) {
	svc, _, _ := newTestService(t, nil)

	_, err := svc.UploadAttachment(context.Background(), Session{UserID: "usr_1"}, UploadAttachmentInput{
		BlockID:  "blk_x",
		FileName: "photo.png",
	})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 DomainError, got %v", err)
	}
}
