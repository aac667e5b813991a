package dynamo

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/calling-tree-api/internal/domain"
)

// TreeRepo is the read-only view over calling trees and their node hierarchy.
// Tree authoring belongs to the surrounding application; the engine only
// snapshots membership from here.
type TreeRepo struct {
	client     *dynamodb.Client
	treeTable  string
	nodesTable string
}

func NewTreeRepo(client *dynamodb.Client, treeTable, nodesTable string) *TreeRepo {
	return &TreeRepo{client: client, treeTable: treeTable, nodesTable: nodesTable}
}

func (r *TreeRepo) Get(ctx context.Context, treeID string) (*domain.CallingTree, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.treeTable),
		Key:       strKey("tree_id", treeID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("tree %s: %w", treeID, domain.ErrNotFound)
	}
	var t domain.CallingTree
	if err := attributevalue.UnmarshalMap(out.Item, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// GetLevels queries the tree_id-level GSI and groups nodes into ordered levels.
// Only populated levels appear; nodes without a user are skipped. The result is
// ordered by level ascending, nodes by position ascending.
func (r *TreeRepo) GetLevels(ctx context.Context, treeID string) ([]domain.TreeLevel, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.nodesTable),
		IndexName:              aws.String("tree_id-level-index"),
		KeyConditionExpression: aws.String("tree_id = :tid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":tid": &types.AttributeValueMemberS{Value: treeID},
		},
		ScanIndexForward: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	var nodes []domain.TreeNode
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &nodes); err != nil {
		return nil, err
	}

	byLevel := make(map[int][]domain.TreeNode)
	for _, n := range nodes {
		if n.UserID == "" {
			continue
		}
		byLevel[n.Level] = append(byLevel[n.Level], n)
	}
	levels := make([]domain.TreeLevel, 0, len(byLevel))
	for lvl, ns := range byLevel {
		sort.Slice(ns, func(i, j int) bool { return ns[i].Position < ns[j].Position })
		levels = append(levels, domain.TreeLevel{Level: lvl, Nodes: ns})
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i].Level < levels[j].Level })
	return levels, nil
}
