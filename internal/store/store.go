// Package store persists live behavioral sessions and the summaries saved
// when a session finishes.
//
// Two backends implement BehavioralStore: DynamoStore for the Lambda
// deployment (single-table design, TTL on live sessions) and SQLiteStore for
// local runs. MemoryStore backs tests and ephemeral servers.
package store

import (
	"context"
	"errors"
	"time"
)

// SessionTTL bounds how long a live session record is kept after it starts.
const SessionTTL = 24 * time.Hour

// DefaultRecentLimit is the number of summaries the dashboard shows.
const DefaultRecentLimit = 5

// Live session statuses.
const (
	StatusActive   = "active"
	StatusFinished = "finished"
)

// ErrInvalidUser is returned for non-positive user IDs.
var ErrInvalidUser = errors.New("invalid user id")

// BehavioralStore is the persistence interface for the live session
// lifecycle. Get methods return (nil, nil) when the record does not exist.
// Put methods replace the full record.
type BehavioralStore interface {
	// PutSession creates or replaces a live session record.
	PutSession(ctx context.Context, session *LiveSession) error

	// GetSession retrieves a live session by ID. Returns nil, nil if not found.
	GetSession(ctx context.Context, sessionID string) (*LiveSession, error)

	// FinishSession marks a live session finished. Missing sessions are not
	// an error since sessions expire independently of their summaries.
	FinishSession(ctx context.Context, sessionID string) error

	// PutSummary stores a finished-session summary. ID and CreatedAt are
	// assigned when empty.
	PutSummary(ctx context.Context, summary *BehavioralSummary) error

	// RecentSummaries returns up to limit summaries for userID, newest first.
	RecentSummaries(ctx context.Context, userID int64, limit int) ([]*BehavioralSummary, error)

	// Close releases the backend's resources.
	Close() error
}

// LiveSession is a started interview practice session
// (DynamoDB PK = SESSION#{id}, SK = META).
type LiveSession struct {
	ID        string `json:"session_id" dynamodbav:"-"`
	UserID    int64  `json:"user_id,omitempty" dynamodbav:"userId,omitempty"`
	Status    string `json:"status" dynamodbav:"status"`
	Chunks    int    `json:"chunks" dynamodbav:"chunks"`
	CreatedAt int64  `json:"created_at" dynamodbav:"createdAt"`
}

// BehavioralSummary is the persisted outcome of a finished session
// (DynamoDB PK = USER#{userId}, SK = BEHAVIORAL#{createdAt}#{id}).
// Scores are whole numbers.
type BehavioralSummary struct {
	ID              string           `json:"id" dynamodbav:"id"`
	UserID          int64            `json:"-" dynamodbav:"userId"`
	SessionID       string           `json:"session_id,omitempty" dynamodbav:"sessionId,omitempty"`
	ConfidenceScore int              `json:"confidence_score" dynamodbav:"confidenceScore"`
	EyeContactScore int              `json:"eye_contact_score" dynamodbav:"eyeContactScore"`
	PostureScore    int              `json:"posture_score" dynamodbav:"postureScore"`
	SpeechClarity   int              `json:"speech_clarity" dynamodbav:"speechClarity"`
	OverallFeedback string           `json:"overall_feedback" dynamodbav:"overallFeedback"`
	Improvements    []string         `json:"improvements" dynamodbav:"improvements"`
	Trends          map[string]any   `json:"trends" dynamodbav:"trends,omitempty"`
	Segments        []map[string]any `json:"segments" dynamodbav:"segments,omitempty"`
	CreatedAt       time.Time        `json:"date" dynamodbav:"createdAt"`
}

// normalize fills the zero-valued fields every backend expects so that
// dashboards never see null collections.
func (s *BehavioralSummary) normalize() {
	if s.Improvements == nil {
		s.Improvements = []string{}
	}
	if s.Trends == nil {
		s.Trends = map[string]any{}
	}
	if s.Segments == nil {
		s.Segments = []map[string]any{}
	}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultRecentLimit
	}
	return limit
}
