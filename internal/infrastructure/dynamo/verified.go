package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/lead-otp-gateway/internal/domain"
)

// VerifiedRepo is a durable verified-flag store.
// PK: phone
type VerifiedRepo struct {
	client    API
	tableName string
	nowF      func() time.Time
}

func NewVerifiedRepo(client API, tableName string) *VerifiedRepo {
	return &VerifiedRepo{client: client, tableName: tableName, nowF: time.Now}
}

func (r *VerifiedRepo) MarkVerified(ctx context.Context, key domain.PhoneKey) error {
	item, err := attributevalue.MarshalMap(domain.VerifiedPhone{Phone: key, VerifiedAt: r.nowF().UTC()})
	if err != nil {
		return fmt.Errorf("marshal verified phone: %w", err)
	}
	// keep the first verification time
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(r.tableName),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#p)"),
		ExpressionAttributeNames: map[string]string{"#p": "phone"},
	})
	if isConditionFailed(err) {
		return nil
	}
	return err
}

func (r *VerifiedRepo) IsVerified(ctx context.Context, key domain.PhoneKey) (bool, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey("phone", string(key)),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return false, err
	}
	return out.Item != nil, nil
}
