package upload

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rngallery/rngallery/internal/database"
)

var ErrNotFound = errors.New("upload not found")

// Record is one row of the uploads table.
type Record struct {
	ID         uuid.UUID  `json:"id"`
	Key        string     `json:"key,omitempty"`
	Nickname   string     `json:"nickname,omitempty"`
	FileName   string     `json:"fileName"`
	MediaKind  MediaKind  `json:"mediaKind"`
	Phase      Phase      `json:"phase"`
	Percent    int        `json:"percent"`
	Task       string     `json:"task,omitempty"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// Snapshot rebuilds what the flow last reported from the stored row.
func (r Record) Snapshot() Snapshot {
	s := Snapshot{
		FileName:  r.FileName,
		MediaKind: r.MediaKind,
		Phase:     r.Phase,
		Percent:   r.Percent,
		Key:       r.Key,
		Error:     r.Error,
	}
	if r.Task != "" {
		s.Status = &Status{Task: r.Task}
		s.Label = StatusLabel(r.Task, r.Percent)
	}
	if r.Phase == PhaseComplete {
		s.Redirect = "/"
	}
	return s
}

// Recorder persists upload progress. *Store is the Postgres implementation.
type Recorder interface {
	Create(ctx context.Context, id uuid.UUID, nickname string, snap Snapshot) error
	UpdateProgress(ctx context.Context, id uuid.UUID, snap Snapshot) error
	Finish(ctx context.Context, id uuid.UUID, snap Snapshot) error
}

type Store struct {
	db database.DBTX
}

func NewStore(db database.DBTX) *Store {
	return &Store{db: db}
}

func taskOf(s Snapshot) string {
	if s.Status == nil {
		return ""
	}
	return s.Status.Task
}

func (s *Store) Create(ctx context.Context, id uuid.UUID, nickname string, snap Snapshot) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO uploads (id, nickname, file_name, media_kind, phase, percent)
		 VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6)`,
		id, nickname, snap.FileName, snap.MediaKind.String(), snap.Phase.String(), snap.Percent,
	)
	if err != nil {
		return fmt.Errorf("insert upload: %w", err)
	}
	return nil
}

func (s *Store) UpdateProgress(ctx context.Context, id uuid.UUID, snap Snapshot) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE uploads
		 SET gif_key = NULLIF($2, ''), phase = $3, percent = $4, task = NULLIF($5, ''), updated_at = now()
		 WHERE id = $1`,
		id, snap.Key, snap.Phase.String(), snap.Percent, taskOf(snap),
	)
	if err != nil {
		return fmt.Errorf("update upload progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) Finish(ctx context.Context, id uuid.UUID, snap Snapshot) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE uploads
		 SET gif_key = NULLIF($2, ''), phase = $3, percent = $4, task = NULLIF($5, ''),
		     error = NULLIF($6, ''), updated_at = now(), finished_at = now()
		 WHERE id = $1`,
		id, snap.Key, snap.Phase.String(), snap.Percent, taskOf(snap), snap.Error,
	)
	if err != nil {
		return fmt.Errorf("finish upload: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const recordColumns = `id, gif_key, nickname, file_name, media_kind, phase, percent, task, error, created_at, updated_at, finished_at`

func scanRecord(row pgx.Row) (*Record, error) {
	var r Record
	var key, nickname, task, errMsg *string
	var id, kind, phase string
	if err := row.Scan(&id, &key, &nickname, &r.FileName, &kind, &phase, &r.Percent, &task, &errMsg,
		&r.CreatedAt, &r.UpdatedAt, &r.FinishedAt); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse upload id: %w", err)
	}
	r.ID = parsed
	if err := r.MediaKind.UnmarshalText([]byte(kind)); err != nil {
		return nil, err
	}
	if err := r.Phase.UnmarshalText([]byte(phase)); err != nil {
		return nil, err
	}
	r.Key = deref(key)
	r.Nickname = deref(nickname)
	r.Task = deref(task)
	r.Error = deref(errMsg)
	return &r, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	r, err := scanRecord(s.db.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM uploads WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get upload: %w", err)
	}
	return r, nil
}

// ListRecent returns the newest uploads first, optionally only one viewer's.
func (s *Store) ListRecent(ctx context.Context, nickname string, limit int) ([]Record, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+recordColumns+` FROM uploads
		 WHERE $1 = '' OR nickname = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		nickname, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan upload: %w", err)
		}
		records = append(records, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	return records, nil
}
