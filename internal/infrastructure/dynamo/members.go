package dynamo

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/calling-tree-api/internal/domain"
)

// batchGetLimit is DynamoDB's hard ceiling on keys per BatchGetItem request.
const batchGetLimit = 100

// MemberRepo reads the contact sliver of member profiles. Profile CRUD lives
// in the surrounding application.
type MemberRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewMemberRepo(client *dynamodb.Client, tableName string) *MemberRepo {
	return &MemberRepo{client: client, tableName: tableName}
}

// GetBatch resolves contact details for the given user IDs. Missing members are
// simply absent from the result map; the caller decides how to treat them.
func (r *MemberRepo) GetBatch(ctx context.Context, userIDs []string) (map[string]domain.Member, error) {
	members := make(map[string]domain.Member, len(userIDs))
	for start := 0; start < len(userIDs); start += batchGetLimit {
		end := start + batchGetLimit
		if end > len(userIDs) {
			end = len(userIDs)
		}
		keys := make([]map[string]types.AttributeValue, 0, end-start)
		for _, id := range userIDs[start:end] {
			keys = append(keys, strKey("user_id", id))
		}

		req := map[string]types.KeysAndAttributes{
			r.tableName: {Keys: keys},
		}
		for len(req) > 0 {
			out, err := r.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{
				RequestItems: req,
			})
			if err != nil {
				return nil, err
			}
			for _, item := range out.Responses[r.tableName] {
				var m domain.Member
				if err := attributevalue.UnmarshalMap(item, &m); err != nil {
					return nil, err
				}
				members[m.UserID] = m
			}
			// DynamoDB may return a partial page; retry the remainder.
			req = out.UnprocessedKeys
		}
	}
	return members, nil
}

func (r *MemberRepo) Get(ctx context.Context, userID string) (*domain.Member, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("user_id", userID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, domain.ErrNotFound
	}
	var m domain.Member
	if err := attributevalue.UnmarshalMap(out.Item, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
