package store

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeDynamo is an in-memory table supporting the key shapes the store uses.
type fakeDynamo struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
	puts  []*dynamodb.PutItemInput
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func attrS(item map[string]types.AttributeValue, name string) string {
	if v, ok := item[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func itemKey(key map[string]types.AttributeValue) string {
	return attrS(key, "PK") + "|" + attrS(key, "SK")
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts = append(f.puts, in)
	f.items[itemKey(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &dynamodb.GetItemOutput{Item: f.items[itemKey(in.Key)]}, nil
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[itemKey(in.Key)]
	if !ok {
		return nil, &types.ConditionalCheckFailedException{}
	}
	item["status"] = in.ExpressionAttributeValues[":s"]
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pk := attrS(in.ExpressionAttributeValues, ":pk")
	prefix := attrS(in.ExpressionAttributeValues, ":sk")

	var matched []map[string]types.AttributeValue
	for _, item := range f.items {
		if attrS(item, "PK") == pk && strings.HasPrefix(attrS(item, "SK"), prefix) {
			matched = append(matched, item)
		}
	}
	forward := in.ScanIndexForward == nil || *in.ScanIndexForward
	sort.Slice(matched, func(i, j int) bool {
		a, b := attrS(matched[i], "SK"), attrS(matched[j], "SK")
		if forward {
			return a < b
		}
		return a > b
	})
	if in.Limit != nil && len(matched) > int(*in.Limit) {
		matched = matched[:*in.Limit]
	}
	return &dynamodb.QueryOutput{Items: matched}, nil
}

func TestDynamoKeysAndTTL(t *testing.T) {
	ctx := context.Background()
	fake := newFakeDynamo()
	s := newDynamoStore(fake, "coach-test")
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	if err := s.PutSession(ctx, &LiveSession{ID: "abc", Status: StatusActive}); err != nil {
		t.Fatal(err)
	}
	if err := s.PutSummary(ctx, &BehavioralSummary{ID: "sum-1", UserID: 42}); err != nil {
		t.Fatal(err)
	}
	if len(fake.puts) != 2 {
		t.Fatalf("got %d puts", len(fake.puts))
	}

	session := fake.puts[0]
	if *session.TableName != "coach-test" {
		t.Errorf("table: got %q", *session.TableName)
	}
	if attrS(session.Item, "PK") != "SESSION#abc" || attrS(session.Item, "SK") != "META" {
		t.Errorf("session keys: %v / %v", session.Item["PK"], session.Item["SK"])
	}
	ttl, ok := session.Item["expiresAt"].(*types.AttributeValueMemberN)
	if !ok {
		t.Fatal("session should carry an expiresAt TTL")
	}
	if want := strconv.FormatInt(now.Add(SessionTTL).Unix(), 10); ttl.Value != want {
		t.Errorf("expiresAt: got %s, want %s", ttl.Value, want)
	}

	summary := fake.puts[1]
	if attrS(summary.Item, "PK") != "USER#42" {
		t.Errorf("summary PK: got %q", attrS(summary.Item, "PK"))
	}
	if sk := attrS(summary.Item, "SK"); !strings.HasPrefix(sk, "BEHAVIORAL#") || !strings.HasSuffix(sk, "#sum-1") {
		t.Errorf("summary SK: got %q", sk)
	}
	if _, ok := summary.Item["expiresAt"]; ok {
		t.Error("summaries should not expire")
	}
}

func TestSummarySKOrdering(t *testing.T) {
	early := summarySK(time.Unix(9, 0), "z")
	late := summarySK(time.Unix(10, 0), "a")
	if early >= late {
		t.Errorf("sort keys should order by time: %q >= %q", early, late)
	}
}
