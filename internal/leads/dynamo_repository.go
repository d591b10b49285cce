package leads

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// dynamoLead is the item layout in the leads table.
type dynamoLead struct {
	LeadID         string               `dynamodbav:"leadId"`
	Name           string               `dynamodbav:"name"`
	Email          string               `dynamodbav:"email"`
	Company        string               `dynamodbav:"company,omitempty"`
	Phone          string               `dynamodbav:"phone,omitempty"`
	ProjectType    string               `dynamodbav:"projectType"`
	Message        string               `dynamodbav:"message"`
	SourceIP       string               `dynamodbav:"sourceIp,omitempty"`
	Status         string               `dynamodbav:"status"`
	Spam           *SpamAnnotation      `dynamodbav:"spam,omitempty"`
	Qualification  *QualificationResult `dynamodbav:"qualification,omitempty"`
	Score          *LeadScore           `dynamodbav:"score,omitempty"`
	ClientNotified bool                 `dynamodbav:"clientNotified"`
	AdminNotified  bool                 `dynamodbav:"adminNotified"`
	CreatedAt      string               `dynamodbav:"createdAt"`
	UpdatedAt      string               `dynamodbav:"updatedAt"`
}

// DynamoRepository persists leads to a DynamoDB table keyed by leadId.
type DynamoRepository struct {
	client    dynamoAPI
	tableName string
	now       func() time.Time
}

// NewDynamoRepository builds a repository backed by the provided DynamoDB client.
func NewDynamoRepository(client dynamoAPI, tableName string) *DynamoRepository {
	if client == nil {
		panic("leads: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("leads: table name cannot be empty")
	}
	return &DynamoRepository{
		client:    client,
		tableName: tableName,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create writes a new item, refusing to overwrite an existing ID.
func (r *DynamoRepository) Create(ctx context.Context, lead *Lead) (*Lead, error) {
	stored := *lead
	stored.ID = uuid.New().String()
	stored.CreatedAt = r.now()
	stored.UpdatedAt = stored.CreatedAt

	item, err := attributevalue.MarshalMap(toDynamoLead(&stored))
	if err != nil {
		return nil, fmt.Errorf("leads: failed to marshal lead: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(leadId)"),
	})
	if err != nil {
		return nil, fmt.Errorf("leads: failed to persist lead: %w", err)
	}
	return &stored, nil
}

// Update sets only the patch fields that are present.
func (r *DynamoRepository) Update(ctx context.Context, id string, patch Patch) error {
	if patch.Empty() {
		return ErrEmptyPatch
	}
	if err := patch.Validate(); err != nil {
		return err
	}

	sets := []string{"#updated = :updated"}
	names := map[string]string{"#updated": "updatedAt"}
	values := map[string]types.AttributeValue{
		":updated": &types.AttributeValueMemberS{Value: r.now().Format(time.RFC3339Nano)},
	}

	if patch.Qualification != nil {
		av, err := attributevalue.Marshal(patch.Qualification)
		if err != nil {
			return fmt.Errorf("leads: failed to marshal qualification: %w", err)
		}
		sets = append(sets, "#qualification = :qualification")
		names["#qualification"] = "qualification"
		values[":qualification"] = av
	}
	if patch.Score != nil {
		av, err := attributevalue.Marshal(patch.Score)
		if err != nil {
			return fmt.Errorf("leads: failed to marshal score: %w", err)
		}
		sets = append(sets, "#score = :score")
		names["#score"] = "score"
		values[":score"] = av
	}
	if patch.ClientNotified != nil {
		sets = append(sets, "#client = :client")
		names["#client"] = "clientNotified"
		values[":client"] = &types.AttributeValueMemberBOOL{Value: *patch.ClientNotified}
	}
	if patch.AdminNotified != nil {
		sets = append(sets, "#admin = :admin")
		names["#admin"] = "adminNotified"
		values[":admin"] = &types.AttributeValueMemberBOOL{Value: *patch.AdminNotified}
	}

	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"leadId": &types.AttributeValueMemberS{Value: id},
		},
		UpdateExpression:          aws.String("SET " + strings.Join(sets, ", ")),
		ConditionExpression:       aws.String("attribute_exists(leadId)"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrLeadNotFound
		}
		return fmt.Errorf("leads: failed to update lead: %w", err)
	}
	return nil
}

// GetByID loads a lead by its key.
func (r *DynamoRepository) GetByID(ctx context.Context, id string) (*Lead, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"leadId": &types.AttributeValueMemberS{Value: id},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("leads: failed to load lead: %w", err)
	}
	if out.Item == nil {
		return nil, ErrLeadNotFound
	}

	var item dynamoLead
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("leads: failed to unmarshal lead: %w", err)
	}
	return fromDynamoLead(item), nil
}

func toDynamoLead(l *Lead) dynamoLead {
	return dynamoLead{
		LeadID:         l.ID,
		Name:           l.Name,
		Email:          l.Email,
		Company:        l.Company,
		Phone:          l.Phone,
		ProjectType:    string(l.ProjectType),
		Message:        l.Message,
		SourceIP:       l.SourceIP,
		Status:         string(l.Status),
		Spam:           l.Spam,
		Qualification:  l.Qualification,
		Score:          l.Score,
		ClientNotified: l.ClientNotified,
		AdminNotified:  l.AdminNotified,
		CreatedAt:      l.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:      l.UpdatedAt.Format(time.RFC3339Nano),
	}
}

func fromDynamoLead(item dynamoLead) *Lead {
	createdAt, _ := time.Parse(time.RFC3339Nano, item.CreatedAt)
	updatedAt, _ := time.Parse(time.RFC3339Nano, item.UpdatedAt)
	return &Lead{
		ID:             item.LeadID,
		Name:           item.Name,
		Email:          item.Email,
		Company:        item.Company,
		Phone:          item.Phone,
		ProjectType:    ProjectType(item.ProjectType),
		Message:        item.Message,
		SourceIP:       item.SourceIP,
		Status:         Status(item.Status),
		Spam:           item.Spam,
		Qualification:  item.Qualification,
		Score:          item.Score,
		ClientNotified: item.ClientNotified,
		AdminNotified:  item.AdminNotified,
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}
}
