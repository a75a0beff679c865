package store

import (
	"encoding/json"
	"time"
)

type User struct {
	ID              string
	DisplayName     string
	Email           string
	PasswordHash    string
	Role            string
	IsEmailVerified bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TreeSnapshotRecord is one persisted export of a block tree. The payload is
// the engine's snapshot envelope as JSON; CommitHash links it to the git
// history kept by treerepo.
type TreeSnapshotRecord struct {
	ID         int64
	TreeID     string
	Payload    json.RawMessage
	BlockCount int
	CommitHash string
	CreatedBy  string
	CreatedAt  time.Time
}

type Habit struct {
	ID          string
	Name        string
	Description string
	Schedule    string
	Streak      int
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type HabitLog struct {
	ID        int64
	HabitID   string
	Note      string
	LoggedAt  time.Time
}

type Quote struct {
	ID        string
	Text      string
	Author    string
	Source    string
	CreatedBy string
	CreatedAt time.Time
}

type Attachment struct {
	ID          string
	Key         string
	FileName    string
	ContentType string
	Size        int64
	BlockID     string
	UploadedBy  string
	CreatedAt   time.Time
}
