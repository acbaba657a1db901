package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/lead-otp-gateway/internal/domain"
)

// LeadRepo persists verified leads, one per phone.
// PK: phone
type LeadRepo struct {
	client    API
	tableName string
}

func NewLeadRepo(client API, tableName string) *LeadRepo {
	return &LeadRepo{client: client, tableName: tableName}
}

// Create stores l unless a lead for the same phone exists, in which case it returns domain.ErrConflict.
func (r *LeadRepo) Create(ctx context.Context, l *domain.Lead) error {
	item, err := attributevalue.MarshalMap(l)
	if err != nil {
		return fmt.Errorf("marshal lead: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(r.tableName),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#p)"),
		ExpressionAttributeNames: map[string]string{"#p": "phone"},
	})
	if isConditionFailed(err) {
		return fmt.Errorf("lead already exists: %w", domain.ErrConflict)
	}
	return err
}

func (r *LeadRepo) GetByPhone(ctx context.Context, key domain.PhoneKey) (*domain.Lead, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("phone", string(key)),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("lead not found: %w", domain.ErrNotFound)
	}
	var l domain.Lead
	if err := attributevalue.UnmarshalMap(out.Item, &l); err != nil {
		return nil, err
	}
	return &l, nil
}
