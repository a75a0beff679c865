package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Users

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name, email, password_hash, role)
		VALUES ($1, $2, $3, $4, $5)
	`, user.ID, user.DisplayName, user.Email, user.PasswordHash, user.Role)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, role
		FROM users WHERE id=$1
	`, userID).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.Role)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, role
		FROM users WHERE LOWER(email)=LOWER($1)
	`, email).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.Role)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// Refresh sessions (Postgres fallback when Redis is not configured)

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (User, error) {
	const query = `
		SELECT u.id, u.display_name, u.email, u.role
		FROM refresh_sessions rs
		JOIN users u ON u.id = rs.user_id
		WHERE rs.token_hash = $1
			AND rs.revoked_at IS NULL
			AND rs.expires_at > NOW()
	`
	var user User
	err := s.db.QueryRowContext(ctx, query, tokenHash).Scan(&user.ID, &user.DisplayName, &user.Email, &user.Role)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

// Tree snapshots

func (s *PostgresStore) SaveTreeSnapshot(ctx context.Context, record TreeSnapshotRecord) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO tree_snapshots (tree_id, payload, block_count, commit_hash, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, record.TreeID, []byte(record.Payload), record.BlockCount, record.CommitHash, record.CreatedBy).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert tree snapshot: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) LatestTreeSnapshot(ctx context.Context, treeID string) (TreeSnapshotRecord, error) {
	const query = `
		SELECT id, tree_id, payload, block_count, commit_hash, created_by, created_at
		FROM tree_snapshots
		WHERE tree_id=$1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	var record TreeSnapshotRecord
	var payload []byte
	err := s.db.QueryRowContext(ctx, query, treeID).Scan(
		&record.ID, &record.TreeID, &payload, &record.BlockCount,
		&record.CommitHash, &record.CreatedBy, &record.CreatedAt,
	)
	if err != nil {
		return TreeSnapshotRecord{}, err
	}
	record.Payload = json.RawMessage(payload)
	return record, nil
}

func (s *PostgresStore) ListTreeSnapshots(ctx context.Context, treeID string, limit int) ([]TreeSnapshotRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
		SELECT id, tree_id, block_count, commit_hash, created_by, created_at
		FROM tree_snapshots
		WHERE tree_id=$1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, treeID, limit)
	if err != nil {
		return nil, fmt.Errorf("list tree snapshots: %w", err)
	}
	defer rows.Close()

	var records []TreeSnapshotRecord
	for rows.Next() {
		var record TreeSnapshotRecord
		if err := rows.Scan(&record.ID, &record.TreeID, &record.BlockCount, &record.CommitHash, &record.CreatedBy, &record.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tree snapshot: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// Habits

func (s *PostgresStore) InsertHabit(ctx context.Context, habit Habit) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO habits (id, name, description, schedule, created_by)
		VALUES ($1, $2, $3, $4, $5)
	`, habit.ID, habit.Name, habit.Description, habit.Schedule, habit.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert habit: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetHabit(ctx context.Context, id string) (Habit, error) {
	var habit Habit
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, schedule, streak, created_by, created_at, updated_at
		FROM habits WHERE id=$1
	`, id).Scan(&habit.ID, &habit.Name, &habit.Description, &habit.Schedule, &habit.Streak, &habit.CreatedBy, &habit.CreatedAt, &habit.UpdatedAt)
	if err != nil {
		return Habit{}, err
	}
	return habit, nil
}

func (s *PostgresStore) ListHabits(ctx context.Context) ([]Habit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, schedule, streak, created_by, created_at, updated_at
		FROM habits ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}
	defer rows.Close()

	var habits []Habit
	for rows.Next() {
		var habit Habit
		if err := rows.Scan(&habit.ID, &habit.Name, &habit.Description, &habit.Schedule, &habit.Streak, &habit.CreatedBy, &habit.CreatedAt, &habit.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan habit: %w", err)
		}
		habits = append(habits, habit)
	}
	return habits, rows.Err()
}

func (s *PostgresStore) UpdateHabit(ctx context.Context, id, name, description, schedule string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE habits SET name=$2, description=$3, schedule=$4, updated_at=NOW() WHERE id=$1
	`, id, name, description, schedule)
	if err != nil {
		return fmt.Errorf("update habit: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update habit rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) DeleteHabit(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM habits WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete habit: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete habit rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// LogHabit records a completion and recomputes the streak in one statement:
// a log within the previous day extends the streak, anything older resets it.
func (s *PostgresStore) LogHabit(ctx context.Context, habitID, note string) (Habit, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Habit{}, fmt.Errorf("begin habit log tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var lastLogged sql.NullTime
	err = tx.QueryRowContext(ctx, `
		SELECT MAX(logged_at) FROM habit_logs WHERE habit_id=$1
	`, habitID).Scan(&lastLogged)
	if err != nil {
		return Habit{}, fmt.Errorf("read last habit log: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO habit_logs (habit_id, note) VALUES ($1, $2)
	`, habitID, note); err != nil {
		return Habit{}, fmt.Errorf("insert habit log: %w", err)
	}

	streakExpr := `streak + 1`
	if !lastLogged.Valid || time.Since(lastLogged.Time) > 48*time.Hour {
		streakExpr = `1`
	}
	var habit Habit
	err = tx.QueryRowContext(ctx, `
		UPDATE habits SET streak=`+streakExpr+`, updated_at=NOW() WHERE id=$1
		RETURNING id, name, description, schedule, streak, created_by, created_at, updated_at
	`, habitID).Scan(&habit.ID, &habit.Name, &habit.Description, &habit.Schedule, &habit.Streak, &habit.CreatedBy, &habit.CreatedAt, &habit.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Habit{}, sql.ErrNoRows
	}
	if err != nil {
		return Habit{}, fmt.Errorf("update habit streak: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Habit{}, fmt.Errorf("commit habit log: %w", err)
	}
	return habit, nil
}

// Quotes

func (s *PostgresStore) InsertQuote(ctx context.Context, quote Quote) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO quotes (id, text, author, source, created_by)
		VALUES ($1, $2, $3, $4, $5)
	`, quote.ID, quote.Text, quote.Author, quote.Source, quote.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert quote: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListQuotes(ctx context.Context) ([]Quote, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, author, source, created_by, created_at
		FROM quotes ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list quotes: %w", err)
	}
	defer rows.Close()

	var quotes []Quote
	for rows.Next() {
		var quote Quote
		if err := rows.Scan(&quote.ID, &quote.Text, &quote.Author, &quote.Source, &quote.CreatedBy, &quote.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan quote: %w", err)
		}
		quotes = append(quotes, quote)
	}
	return quotes, rows.Err()
}

func (s *PostgresStore) DeleteQuote(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM quotes WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete quote: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete quote rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Attachments

func (s *PostgresStore) InsertAttachment(ctx context.Context, attachment Attachment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attachments (id, key, file_name, content_type, size, block_id, uploaded_by)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)
	`, attachment.ID, attachment.Key, attachment.FileName, attachment.ContentType, attachment.Size, attachment.BlockID, attachment.UploadedBy)
	if err != nil {
		return fmt.Errorf("insert attachment: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAttachmentByKey(ctx context.Context, key string) (Attachment, error) {
	var attachment Attachment
	var blockID sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, key, file_name, content_type, size, block_id, uploaded_by, created_at
		FROM attachments WHERE key=$1
	`, key).Scan(&attachment.ID, &attachment.Key, &attachment.FileName, &attachment.ContentType, &attachment.Size, &blockID, &attachment.UploadedBy, &attachment.CreatedAt)
	if err != nil {
		return Attachment{}, err
	}
	attachment.BlockID = blockID.String
	return attachment, nil
}
