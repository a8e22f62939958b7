package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DynamoDB key constants for the single-table design.
const (
	pkSession   = "SESSION#"
	pkUser      = "USER#"
	skMeta      = "META"
	skBehavior  = "BEHAVIORAL#"
	ttlAttrName = "expiresAt"
)

// dynamoAPI is the subset of the DynamoDB client the store uses.
type dynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DynamoStore implements BehavioralStore on a single DynamoDB table keyed by
// PK/SK. Live sessions carry an expiresAt TTL; summaries do not expire.
type DynamoStore struct {
	client    dynamoAPI
	tableName string
	now       func() time.Time
}

var _ BehavioralStore = (*DynamoStore)(nil)

// NewDynamoStore creates a DynamoStore for the given table.
func NewDynamoStore(client *dynamodb.Client, tableName string) *DynamoStore {
	return newDynamoStore(client, tableName)
}

func newDynamoStore(client dynamoAPI, tableName string) *DynamoStore {
	return &DynamoStore{client: client, tableName: tableName, now: time.Now}
}

func sessionPK(sessionID string) string { return pkSession + sessionID }

func userPK(userID int64) string { return pkUser + strconv.FormatInt(userID, 10) }

// summarySK orders summaries chronologically within a user partition.
// The timestamp is zero-padded so lexical order matches time order.
func summarySK(createdAt time.Time, id string) string {
	return fmt.Sprintf("%s%020d#%s", skBehavior, createdAt.UnixNano(), id)
}

// putItem marshals a domain object and writes it with PK and SK. A positive
// ttl adds the expiresAt attribute.
func (s *DynamoStore) putItem(ctx context.Context, pk, sk string, data any, ttl time.Duration) error {
	item, err := attributevalue.MarshalMap(data)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	item["PK"] = &types.AttributeValueMemberS{Value: pk}
	item["SK"] = &types.AttributeValueMemberS{Value: sk}
	if ttl > 0 {
		exp := s.now().Add(ttl).Unix()
		item[ttlAttrName] = &types.AttributeValueMemberN{Value: strconv.FormatInt(exp, 10)}
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("PutItem PK=%s SK=%s: %w", pk, sk, err)
	}
	return nil
}

// getItem reads a single item and unmarshals it into out.
// Returns false if the item does not exist.
func (s *DynamoStore) getItem(ctx context.Context, pk, sk string, out any) (bool, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk},
			"SK": &types.AttributeValueMemberS{Value: sk},
		},
	})
	if err != nil {
		return false, fmt.Errorf("GetItem PK=%s SK=%s: %w", pk, sk, err)
	}
	if result.Item == nil {
		return false, nil
	}
	if err := attributevalue.UnmarshalMap(result.Item, out); err != nil {
		return false, fmt.Errorf("unmarshal PK=%s SK=%s: %w", pk, sk, err)
	}
	return true, nil
}

// --- Live sessions ---

func (s *DynamoStore) PutSession(ctx context.Context, session *LiveSession) error {
	if session.CreatedAt == 0 {
		session.CreatedAt = s.now().Unix()
	}
	if err := s.putItem(ctx, sessionPK(session.ID), skMeta, session, SessionTTL); err != nil {
		return fmt.Errorf("put session %s: %w", session.ID, err)
	}
	log.Debug().Str("sessionId", session.ID).Str("status", session.Status).Msg("Session persisted")
	return nil
}

func (s *DynamoStore) GetSession(ctx context.Context, sessionID string) (*LiveSession, error) {
	var session LiveSession
	found, err := s.getItem(ctx, sessionPK(sessionID), skMeta, &session)
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", sessionID, err)
	}
	if !found {
		return nil, nil
	}
	session.ID = sessionID
	return &session, nil
}

// FinishSession sets the status without touching the rest of the record.
// The condition keeps the update from creating a stub item for an expired
// session.
func (s *DynamoStore) FinishSession(ctx context.Context, sessionID string) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
			"SK": &types.AttributeValueMemberS{Value: skMeta},
		},
		ConditionExpression: aws.String("attribute_exists(PK)"),
		UpdateExpression:    aws.String("SET #s = :s"),
		ExpressionAttributeNames: map[string]string{
			"#s": "status", // reserved word
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":s": &types.AttributeValueMemberS{Value: StatusFinished},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			log.Debug().Str("sessionId", sessionID).Msg("Finish on missing session ignored")
			return nil
		}
		return fmt.Errorf("finish session %s: %w", sessionID, err)
	}
	log.Debug().Str("sessionId", sessionID).Msg("Session finished")
	return nil
}

// --- Summaries ---

func (s *DynamoStore) PutSummary(ctx context.Context, summary *BehavioralSummary) error {
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

	sk := summarySK(summary.CreatedAt, summary.ID)
	if err := s.putItem(ctx, userPK(summary.UserID), sk, summary, 0); err != nil {
		return fmt.Errorf("put summary %s: %w", summary.ID, err)
	}

	log.Debug().
		Int64("userId", summary.UserID).
		Str("summaryId", summary.ID).
		Int("confidence", summary.ConfidenceScore).
		Msg("Behavioral summary persisted")
	return nil
}

func (s *DynamoStore) RecentSummaries(ctx context.Context, userID int64, limit int) ([]*BehavioralSummary, error) {
	if userID <= 0 {
		return nil, ErrInvalidUser
	}
	result, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              &s.tableName,
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: userPK(userID)},
			":sk": &types.AttributeValueMemberS{Value: skBehavior},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(clampLimit(limit))),
	})
	if err != nil {
		return nil, fmt.Errorf("query summaries for user %d: %w", userID, err)
	}

	out := make([]*BehavioralSummary, 0, len(result.Items))
	for _, item := range result.Items {
		var summary BehavioralSummary
		if err := attributevalue.UnmarshalMap(item, &summary); err != nil {
			return nil, fmt.Errorf("unmarshal summary for user %d: %w", userID, err)
		}
		summary.normalize()
		out = append(out, &summary)
	}
	return out, nil
}

// Close is a no-op; the DynamoDB client has no resources to release.
func (s *DynamoStore) Close() error { return nil }
