package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"lattice/api/internal/auth"
	"lattice/api/internal/authpw"
	"lattice/api/internal/block"
	"lattice/api/internal/config"
	"lattice/api/internal/export"
	"lattice/api/internal/media"
	"lattice/api/internal/rbac"
	"lattice/api/internal/search"
	"lattice/api/internal/store"
	"lattice/api/internal/treerepo"
	"lattice/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Role         string
	JTI          string
	ExpiresAt    time.Time
}

type dataStore interface {
	Ping(context.Context) error
	CreateUser(context.Context, store.User) error
	GetUserByID(context.Context, string) (store.User, error)
	GetUserByEmail(context.Context, string) (store.User, error)
	SaveTreeSnapshot(context.Context, store.TreeSnapshotRecord) (int64, error)
	LatestTreeSnapshot(context.Context, string) (store.TreeSnapshotRecord, error)
	ListTreeSnapshots(context.Context, string, int) ([]store.TreeSnapshotRecord, error)
	InsertHabit(context.Context, store.Habit) error
	GetHabit(context.Context, string) (store.Habit, error)
	ListHabits(context.Context) ([]store.Habit, error)
	UpdateHabit(ctx context.Context, id, name, description, schedule string) error
	DeleteHabit(context.Context, string) error
	LogHabit(ctx context.Context, habitID, note string) (store.Habit, error)
	InsertQuote(context.Context, store.Quote) error
	ListQuotes(context.Context) ([]store.Quote, error)
	DeleteQuote(context.Context, string) error
	InsertAttachment(context.Context, store.Attachment) error
	GetAttachmentByKey(context.Context, string) (store.Attachment, error)
}

type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions sessionStore
	engine   *block.Engine
	trees    *treerepo.Service
	search   *search.Service
	media    *media.Service // nil when object storage is not configured
	export   *export.Service
	authpw   *authpw.Service
}

func NewService(
	cfg config.Config,
	dataStore dataStore,
	sessions sessionStore,
	engine *block.Engine,
	trees *treerepo.Service,
	searchSvc *search.Service,
	mediaSvc *media.Service,
	exportSvc *export.Service,
	authSvc *authpw.Service,
) *Service {
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		sessions: sessions,
		engine:   engine,
		trees:    trees,
		search:   searchSvc,
		media:    mediaSvc,
		export:   exportSvc,
		authpw:   authSvc,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) AuthPasswordService() *authpw.Service {
	return s.authpw
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Role(role), action)
}

// Sessions

func (s *Service) CreateSession(ctx context.Context, userID string) (Session, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	user, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	// The session store only carries the user id; re-read the rest.
	full, err := s.store.GetUserByID(ctx, user.ID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, full)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:  user.ID,
		Name: user.DisplayName,
		Role: user.Role,
		JTI:  jti,
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		Role:         user.Role,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		Role:      user.Role,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
}

// Blocks

type CreateBlockInput struct {
	Variant  string         `json:"variant"`
	Data     map[string]any `json:"data"`
	ParentID string         `json:"parentId"`
	Metadata map[string]any `json:"metadata"`
	Position *int           `json:"position"`
}

func (s *Service) CreateBlock(input CreateBlockInput) (*block.Block, error) {
	created, err := s.engine.Create(block.CreateParams{
		Variant:  block.Variant(input.Variant),
		Data:     input.Data,
		ParentID: input.ParentID,
		Metadata: input.Metadata,
		Position: input.Position,
	})
	if err != nil {
		return nil, err
	}
	s.search.IndexBlock(created)
	return created, nil
}

func (s *Service) GetBlock(id string) (*block.Block, error) {
	found := s.engine.Get(id)
	if found == nil {
		return nil, fmt.Errorf("%w: %s", block.ErrNotFound, id)
	}
	return found, nil
}

type ListBlocksInput struct {
	Variant  string
	ParentID string
	Text     string
	Limit    int
	Offset   int
}

func (s *Service) ListBlocks(input ListBlocksInput) []*block.Block {
	opts := block.QueryOptions{
		Variant:  block.Variant(input.Variant),
		ParentID: input.ParentID,
	}
	if input.Text == "" && input.Limit == 0 && input.Offset == 0 {
		return s.engine.Query(opts)
	}
	return s.engine.Search(block.SearchOptions{
		QueryOptions: opts,
		Text:         input.Text,
		Offset:       input.Offset,
		Limit:        input.Limit,
	})
}

type UpdateBlockInput struct {
	Data     map[string]any `json:"data"`
	Metadata map[string]any `json:"metadata"`
}

func (s *Service) UpdateBlock(id string, input UpdateBlockInput) (*block.Block, error) {
	updated, err := s.engine.Update(block.UpdateParams{
		ID:       id,
		Data:     input.Data,
		Metadata: input.Metadata,
	})
	if err != nil {
		return nil, err
	}
	s.search.IndexBlock(updated)
	return updated, nil
}

type MoveBlockInput struct {
	NewParentID string `json:"newParentId"`
	Position    *int   `json:"position"`
}

func (s *Service) MoveBlock(id string, input MoveBlockInput) (*block.Block, error) {
	moved, err := s.engine.Move(block.MoveParams{
		ID:          id,
		NewParentID: input.NewParentID,
		Position:    input.Position,
	})
	if err != nil {
		return nil, err
	}
	s.search.IndexBlock(moved)
	return moved, nil
}

func (s *Service) DeleteBlock(id string, cascade bool) error {
	var removed []string
	if cascade {
		for _, child := range s.engine.Children(id, true) {
			removed = append(removed, child.ID)
		}
	}
	if err := s.engine.Delete(block.DeleteParams{ID: id, Cascade: cascade}); err != nil {
		return err
	}
	s.search.DeleteBlock(id)
	for _, childID := range removed {
		s.search.DeleteBlock(childID)
	}
	return nil
}

func (s *Service) DuplicateBlock(id string, cascade bool) (*block.Block, error) {
	clone, err := s.engine.Duplicate(block.DuplicateParams{ID: id, Cascade: cascade})
	if err != nil {
		return nil, err
	}
	s.search.IndexBlock(clone)
	for _, child := range s.engine.Children(clone.ID, true) {
		s.search.IndexBlock(child)
	}
	return clone, nil
}

func (s *Service) BlockChildren(id string, recursive bool) ([]*block.Block, error) {
	if s.engine.Get(id) == nil {
		return nil, fmt.Errorf("%w: %s", block.ErrNotFound, id)
	}
	return s.engine.Children(id, recursive), nil
}

func (s *Service) BlockAncestors(id string) ([]*block.Block, error) {
	if s.engine.Get(id) == nil {
		return nil, fmt.Errorf("%w: %s", block.ErrNotFound, id)
	}
	return s.engine.Ancestors(id), nil
}

func (s *Service) RootBlocks() []*block.Block {
	return s.engine.Roots()
}

func (s *Service) SearchBlocks(q search.Query) search.Response {
	return s.search.Search(q)
}

// Tree snapshots

func (s *Service) ExportTree() *block.Snapshot {
	return s.engine.ExportTree()
}

func (s *Service) ImportTree(snapshot *block.Snapshot) error {
	if err := s.engine.ImportTree(snapshot); err != nil {
		return err
	}
	s.search.ReindexAll()
	return nil
}

type SnapshotInfo struct {
	ID         int64     `json:"id"`
	CommitHash string    `json:"commitHash"`
	BlockCount int       `json:"blockCount"`
	CreatedBy  string    `json:"createdBy"`
	CreatedAt  time.Time `json:"createdAt"`
}

// SaveSnapshot exports the live tree, commits it to the tree's git history
// and persists the payload row.
func (s *Service) SaveSnapshot(ctx context.Context, session Session, message string) (SnapshotInfo, error) {
	snapshot := s.engine.ExportTree()
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return SnapshotInfo{}, fmt.Errorf("marshal snapshot: %w", err)
	}

	author := session.UserName
	if author == "" {
		author = "system"
	}
	if strings.TrimSpace(message) == "" {
		message = fmt.Sprintf("Snapshot of %d blocks", len(snapshot.Blocks))
	}

	if err := s.trees.EnsureTreeRepo(s.cfg.TreeID, payload, author); err != nil {
		return SnapshotInfo{}, err
	}
	commit, err := s.trees.CommitSnapshot(s.cfg.TreeID, payload, author, message)
	if err != nil {
		return SnapshotInfo{}, err
	}

	record := store.TreeSnapshotRecord{
		TreeID:     s.cfg.TreeID,
		Payload:    payload,
		BlockCount: len(snapshot.Blocks),
		CommitHash: commit.Hash,
		CreatedBy:  session.UserID,
	}
	id, err := s.store.SaveTreeSnapshot(ctx, record)
	if err != nil {
		return SnapshotInfo{}, err
	}

	return SnapshotInfo{
		ID:         id,
		CommitHash: commit.Hash,
		BlockCount: record.BlockCount,
		CreatedBy:  session.UserID,
		CreatedAt:  commit.CreatedAt,
	}, nil
}

func (s *Service) SnapshotHistory(limit int) ([]treerepo.CommitInfo, error) {
	return s.trees.History(s.cfg.TreeID, limit)
}

// RestoreSnapshot replaces the live tree with the snapshot committed at hash.
func (s *Service) RestoreSnapshot(ctx context.Context, session Session, hash string) (SnapshotInfo, error) {
	payload, commit, err := s.trees.SnapshotByHash(s.cfg.TreeID, hash)
	if err != nil {
		return SnapshotInfo{}, domainError(http.StatusNotFound, "SNAPSHOT_NOT_FOUND", "Snapshot not found", nil)
	}

	snapshot, err := block.DecodeSnapshot(payload)
	if err != nil {
		return SnapshotInfo{}, err
	}
	if err := s.engine.ImportTree(snapshot); err != nil {
		return SnapshotInfo{}, err
	}
	s.search.ReindexAll()

	// Record the restore as a fresh commit so history stays linear.
	return s.SaveSnapshot(ctx, session, fmt.Sprintf("Restore snapshot %s", commit.Hash))
}

// HydrateFromLatest loads the most recent persisted snapshot into the engine
// on boot. A missing snapshot row means a fresh tree.
func (s *Service) HydrateFromLatest(ctx context.Context) error {
	record, err := s.store.LatestTreeSnapshot(ctx, s.cfg.TreeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load latest snapshot: %w", err)
	}

	snapshot, err := block.DecodeSnapshot(record.Payload)
	if err != nil {
		return fmt.Errorf("decode persisted snapshot: %w", err)
	}
	if err := s.engine.ImportTree(snapshot); err != nil {
		return fmt.Errorf("import persisted snapshot: %w", err)
	}
	s.search.ReindexAll()
	return nil
}

// Export

func (s *Service) ExportBlock(req export.Request) (*export.Result, error) {
	return s.export.Export(req)
}

// Attachments

type UploadAttachmentInput struct {
	BlockID     string
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

func (s *Service) UploadAttachment(ctx context.Context, session Session, input UploadAttachmentInput) (store.Attachment, error) {
	if s.media == nil {
		return store.Attachment{}, domainError(http.StatusServiceUnavailable, "MEDIA_UNAVAILABLE", "Object storage not configured", nil)
	}
	if s.engine.Get(input.BlockID) == nil {
		return store.Attachment{}, fmt.Errorf("%w: %s", block.ErrNotFound, input.BlockID)
	}

	key, err := s.media.Upload(ctx, input.BlockID, input.FileName, input.ContentType, input.Size, input.Body)
	if err != nil {
		return store.Attachment{}, err
	}

	attachment := store.Attachment{
		ID:          util.NewID("att"),
		Key:         key,
		FileName:    input.FileName,
		ContentType: input.ContentType,
		Size:        input.Size,
		BlockID:     input.BlockID,
		UploadedBy:  session.UserID,
	}
	if err := s.store.InsertAttachment(ctx, attachment); err != nil {
		return store.Attachment{}, err
	}
	return attachment, nil
}

func (s *Service) AttachmentURL(ctx context.Context, key string) (store.Attachment, string, error) {
	if s.media == nil {
		return store.Attachment{}, "", domainError(http.StatusServiceUnavailable, "MEDIA_UNAVAILABLE", "Object storage not configured", nil)
	}
	attachment, err := s.store.GetAttachmentByKey(ctx, key)
	if err != nil {
		return store.Attachment{}, "", err
	}
	url, err := s.media.PresignedGet(ctx, attachment.Key, 15*time.Minute)
	if err != nil {
		return store.Attachment{}, "", err
	}
	return attachment, url, nil
}

// Habits

type HabitInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Schedule    string `json:"schedule"`
}

func (s *Service) CreateHabit(ctx context.Context, session Session, input HabitInput) (store.Habit, error) {
	if strings.TrimSpace(input.Name) == "" {
		return store.Habit{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}
	habit := store.Habit{
		ID:          util.NewID("hab"),
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
		Schedule:    input.Schedule,
		CreatedBy:   session.UserID,
	}
	if err := s.store.InsertHabit(ctx, habit); err != nil {
		return store.Habit{}, err
	}
	return habit, nil
}

func (s *Service) ListHabits(ctx context.Context) ([]store.Habit, error) {
	return s.store.ListHabits(ctx)
}

func (s *Service) UpdateHabit(ctx context.Context, id string, input HabitInput) (store.Habit, error) {
	if strings.TrimSpace(input.Name) == "" {
		return store.Habit{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}
	if err := s.store.UpdateHabit(ctx, id, strings.TrimSpace(input.Name), input.Description, input.Schedule); err != nil {
		return store.Habit{}, err
	}
	return s.store.GetHabit(ctx, id)
}

func (s *Service) DeleteHabit(ctx context.Context, id string) error {
	return s.store.DeleteHabit(ctx, id)
}

func (s *Service) LogHabit(ctx context.Context, id, note string) (store.Habit, error) {
	return s.store.LogHabit(ctx, id, note)
}

// Quotes

type QuoteInput struct {
	Text   string `json:"text"`
	Author string `json:"author"`
	Source string `json:"source"`
}

func (s *Service) CreateQuote(ctx context.Context, session Session, input QuoteInput) (store.Quote, error) {
	if strings.TrimSpace(input.Text) == "" {
		return store.Quote{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "text is required", nil)
	}
	quote := store.Quote{
		ID:        util.NewID("qte"),
		Text:      strings.TrimSpace(input.Text),
		Author:    input.Author,
		Source:    input.Source,
		CreatedBy: session.UserID,
	}
	if err := s.store.InsertQuote(ctx, quote); err != nil {
		return store.Quote{}, err
	}
	return quote, nil
}

func (s *Service) ListQuotes(ctx context.Context) ([]store.Quote, error) {
	return s.store.ListQuotes(ctx)
}

func (s *Service) DeleteQuote(ctx context.Context, id string) error {
	return s.store.DeleteQuote(ctx, id)
}
