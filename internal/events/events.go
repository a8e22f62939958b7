// Package events publishes behavioral session lifecycle events to Amazon
// EventBridge so downstream consumers (progress tracking, notifications) can
// react without coupling to the API.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	eventbridgetypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/rs/zerolog/log"
)

// Source is the EventBridge source for every event this service emits.
const Source = "interview-coach"

// DetailTypeSessionFinished is emitted after a summary is persisted.
const DetailTypeSessionFinished = "BehavioralSessionFinished"

// SessionFinished is the detail payload of a BehavioralSessionFinished event.
type SessionFinished struct {
	UserID          int64     `json:"userId"`
	SessionID       string    `json:"sessionId,omitempty"`
	SummaryID       string    `json:"summaryId"`
	ConfidenceScore int       `json:"confidenceScore"`
	EyeContactScore int       `json:"eyeContactScore"`
	PostureScore    int       `json:"postureScore"`
	SpeechClarity   int       `json:"speechClarity"`
	FinishedAt      time.Time `json:"finishedAt"`
}

// Publisher emits session events.
type Publisher interface {
	SessionFinished(ctx context.Context, event SessionFinished) error
}

// putEventsAPI is the subset of the EventBridge client used here.
type putEventsAPI interface {
	PutEvents(ctx context.Context, in *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// EventBridge publishes to a named event bus.
type EventBridge struct {
	client  putEventsAPI
	busName string
}

var _ Publisher = (*EventBridge)(nil)

// NewEventBridge creates a publisher for busName.
func NewEventBridge(client *eventbridge.Client, busName string) *EventBridge {
	return &EventBridge{client: client, busName: busName}
}

func (p *EventBridge) SessionFinished(ctx context.Context, event SessionFinished) error {
	detail, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", DetailTypeSessionFinished, err)
	}

	result, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []eventbridgetypes.PutEventsRequestEntry{
			{
				EventBusName: aws.String(p.busName),
				Source:       aws.String(Source),
				DetailType:   aws.String(DetailTypeSessionFinished),
				Detail:       aws.String(string(detail)),
				Time:         aws.Time(event.FinishedAt),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("PutEvents: %w", err)
	}

	if result.FailedEntryCount > 0 {
		for i, entry := range result.Entries {
			if entry.ErrorCode != nil || entry.ErrorMessage != nil {
				return fmt.Errorf("PutEvents entry %d failed: %s - %s", i, aws.ToString(entry.ErrorCode), aws.ToString(entry.ErrorMessage))
			}
		}
	}

	log.Debug().
		Int64("userId", event.UserID).
		Str("summaryId", event.SummaryID).
		Str("bus", p.busName).
		Msg("BehavioralSessionFinished emitted to EventBridge")
	return nil
}

// Nop discards events. Used when no event bus is configured.
type Nop struct{}

func (Nop) SessionFinished(context.Context, SessionFinished) error { return nil }
