package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements BehavioralStore on a local SQLite database. List
// fields are stored as JSON text columns. Expired live sessions are purged
// lazily on write.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ BehavioralStore = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if needed) the database at dbPath and ensures
// the schema exists.
func OpenSQLite(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection serializes writers; SQLite allows only one anyway.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	log.Debug().Str("path", dbPath).Msg("SQLite store opened")
	return s, nil
}

func (s *SQLiteStore) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS live_sessions (
  id TEXT PRIMARY KEY,
  user_id INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL,
  chunks INTEGER NOT NULL DEFAULT 0,
  created_at INTEGER NOT NULL,
  expires_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS behavioral_summaries (
  id TEXT PRIMARY KEY,
  user_id INTEGER NOT NULL,
  session_id TEXT,
  confidence_score INTEGER NOT NULL,
  eye_contact_score INTEGER NOT NULL,
  posture_score INTEGER NOT NULL,
  speech_clarity INTEGER NOT NULL,
  overall_feedback TEXT,
  improvements TEXT NOT NULL,
  trends TEXT NOT NULL,
  segments TEXT NOT NULL,
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_summaries_user_created
  ON behavioral_summaries (user_id, created_at DESC);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// --- Live sessions ---

func (s *SQLiteStore) PutSession(ctx context.Context, session *LiveSession) error {
	now := s.now()
	if session.CreatedAt == 0 {
		session.CreatedAt = now.Unix()
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM live_sessions WHERE expires_at < ?`, now.Unix()); err != nil {
		return fmt.Errorf("purge expired sessions: %w", err)
	}

	const stmt = `
INSERT INTO live_sessions (id, user_id, status, chunks, created_at, expires_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  user_id=excluded.user_id,
  status=excluded.status,
  chunks=excluded.chunks,
  created_at=excluded.created_at,
  expires_at=excluded.expires_at;
`
	_, err := s.db.ExecContext(ctx, stmt,
		session.ID,
		session.UserID,
		session.Status,
		session.Chunks,
		session.CreatedAt,
		now.Add(SessionTTL).Unix(),
	)
	if err != nil {
		return fmt.Errorf("put session %s: %w", session.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*LiveSession, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, status, chunks, created_at FROM live_sessions WHERE id = ? AND expires_at >= ?`,
		sessionID, s.now().Unix())

	session := LiveSession{ID: sessionID}
	err := row.Scan(&session.UserID, &session.Status, &session.Chunks, &session.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", sessionID, err)
	}
	return &session, nil
}

func (s *SQLiteStore) FinishSession(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE live_sessions SET status = ? WHERE id = ?`, StatusFinished, sessionID); err != nil {
		return fmt.Errorf("finish session %s: %w", sessionID, err)
	}
	return nil
}

// --- Summaries ---

func (s *SQLiteStore) PutSummary(ctx context.Context, summary *BehavioralSummary) error {
	if summary.UserID <= 0 {
		return ErrInvalidUser
	}
	if summary.ID == "" {
		summary.ID = uuid.NewString()
	}
	if summary.CreatedAt.IsZero() {
		summary.CreatedAt = s.now().UTC()
	}
	summary.normalize()

	improvements, err := json.Marshal(summary.Improvements)
	if err != nil {
		return fmt.Errorf("encode improvements: %w", err)
	}
	trends, err := json.Marshal(summary.Trends)
	if err != nil {
		return fmt.Errorf("encode trends: %w", err)
	}
	segments, err := json.Marshal(summary.Segments)
	if err != nil {
		return fmt.Errorf("encode segments: %w", err)
	}

	const stmt = `
INSERT INTO behavioral_summaries (id, user_id, session_id, confidence_score, eye_contact_score,
  posture_score, speech_clarity, overall_feedback, improvements, trends, segments, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`
	_, err = s.db.ExecContext(ctx, stmt,
		summary.ID,
		summary.UserID,
		summary.SessionID,
		summary.ConfidenceScore,
		summary.EyeContactScore,
		summary.PostureScore,
		summary.SpeechClarity,
		summary.OverallFeedback,
		string(improvements),
		string(trends),
		string(segments),
		summary.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("put summary %s: %w", summary.ID, err)
	}
	return nil
}

func (s *SQLiteStore) RecentSummaries(ctx context.Context, userID int64, limit int) ([]*BehavioralSummary, error) {
	if userID <= 0 {
		return nil, ErrInvalidUser
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, session_id, confidence_score, eye_contact_score, posture_score, speech_clarity,
  overall_feedback, improvements, trends, segments, created_at
FROM behavioral_summaries
WHERE user_id = ?
ORDER BY created_at DESC
LIMIT ?`, userID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query summaries for user %d: %w", userID, err)
	}
	defer rows.Close()

	var out []*BehavioralSummary
	for rows.Next() {
		summary := BehavioralSummary{UserID: userID}
		var (
			sessionID, feedback            sql.NullString
			improvements, trends, segments string
			createdAt                      int64
		)
		if err := rows.Scan(&summary.ID, &sessionID,
			&summary.ConfidenceScore, &summary.EyeContactScore, &summary.PostureScore, &summary.SpeechClarity,
			&feedback, &improvements, &trends, &segments, &createdAt); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		summary.SessionID = sessionID.String
		summary.OverallFeedback = feedback.String
		summary.CreatedAt = time.Unix(0, createdAt).UTC()

		// A corrupt JSON column degrades to an empty collection.
		if err := json.Unmarshal([]byte(improvements), &summary.Improvements); err != nil {
			log.Warn().Err(err).Str("summaryId", summary.ID).Msg("Unreadable improvements column")
		}
		if err := json.Unmarshal([]byte(trends), &summary.Trends); err != nil {
			log.Warn().Err(err).Str("summaryId", summary.ID).Msg("Unreadable trends column")
		}
		if err := json.Unmarshal([]byte(segments), &summary.Segments); err != nil {
			log.Warn().Err(err).Str("summaryId", summary.ID).Msg("Unreadable segments column")
		}
		summary.normalize()
		out = append(out, &summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summaries: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
