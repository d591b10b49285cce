package leads

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func TestDynamoRepository_CreatePreventsOverwrite(t *testing.T) {
	mock := &mockDynamo{}
	repo := NewDynamoRepository(mock, "leads")

	lead, err := repo.Create(context.Background(), NewSpamLead(sampleSubmission(), SpamAnnotation{Confidence: 80, Reasons: []string{"links"}}))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if mock.putInput == nil {
		t.Fatal("expected PutItem to be called")
	}
	if expr := aws.ToString(mock.putInput.ConditionExpression); expr != "attribute_not_exists(leadId)" {
		t.Fatalf("unexpected condition expression %q", expr)
	}

	var stored dynamoLead
	if err := attributevalue.UnmarshalMap(mock.putInput.Item, &stored); err != nil {
		t.Fatalf("failed to unmarshal stored item: %v", err)
	}
	if stored.LeadID != lead.ID || stored.Status != string(StatusSpam) {
		t.Fatalf("unexpected stored item: %#v", stored)
	}
	if stored.Spam == nil || stored.Spam.Confidence != 80 {
		t.Fatalf("spam annotation not stored: %#v", stored.Spam)
	}
}

func TestDynamoRepository_UpdateSetsOnlyPresentFields(t *testing.T) {
	mock := &mockDynamo{}
	repo := NewDynamoRepository(mock, "leads")

	client := true
	if err := repo.Update(context.Background(), "lead-1", Patch{ClientNotified: &client}); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	update := mock.updateInputs[0]
	expr := aws.ToString(update.UpdateExpression)
	if !strings.Contains(expr, "#client = :client") {
		t.Fatalf("expected client flag in expression, got %q", expr)
	}
	if strings.Contains(expr, "#score") || strings.Contains(expr, "#qualification") {
		t.Fatalf("absent fields must not be written, got %q", expr)
	}
	if v, ok := update.ExpressionAttributeValues[":client"].(*types.AttributeValueMemberBOOL); !ok || !v.Value {
		t.Fatalf("unexpected client value %#v", update.ExpressionAttributeValues[":client"])
	}
}

func TestDynamoRepository_UpdateMissingLead(t *testing.T) {
	mock := &mockDynamo{updateErr: &types.ConditionalCheckFailedException{Message: aws.String("nope")}}
	repo := NewDynamoRepository(mock, "leads")

	err := repo.Update(context.Background(), "lead-1", Patch{Qualification: sampleQualification()})
	if !errors.Is(err, ErrLeadNotFound) {
		t.Fatalf("expected ErrLeadNotFound, got %v", err)
	}
}

func TestDynamoRepository_GetByID(t *testing.T) {
	item, err := attributevalue.MarshalMap(dynamoLead{
		LeadID:        "lead-5",
		Name:          "Avery Quinn",
		ProjectType:   string(ProjectConsulting),
		Status:        string(StatusNew),
		Qualification: sampleQualification(),
		CreatedAt:     "2026-01-02T03:04:05Z",
		UpdatedAt:     "2026-01-02T03:04:05Z",
	})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	repo := NewDynamoRepository(&mockDynamo{getOutput: &dynamodb.GetItemOutput{Item: item}}, "leads")

	lead, err := repo.GetByID(context.Background(), "lead-5")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if lead.ID != "lead-5" || lead.ProjectType != ProjectConsulting {
		t.Fatalf("unexpected lead: %#v", lead)
	}
	if lead.Qualification == nil || lead.Qualification.Priority != PriorityHigh {
		t.Fatalf("qualification not decoded: %#v", lead.Qualification)
	}
	if lead.CreatedAt.Year() != 2026 {
		t.Fatalf("timestamp not parsed: %v", lead.CreatedAt)
	}
}

func TestDynamoRepository_GetByIDNotFound(t *testing.T) {
	repo := NewDynamoRepository(&mockDynamo{}, "leads")
	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, ErrLeadNotFound) {
		t.Fatalf("expected ErrLeadNotFound, got %v", err)
	}
}

type mockDynamo struct {
	putInput     *dynamodb.PutItemInput
	putErr       error
	updateInputs []*dynamodb.UpdateItemInput
	updateErr    error
	getOutput    *dynamodb.GetItemOutput
	getErr       error
}

func (m *mockDynamo) PutItem(ctx context.Context, input *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.putInput = input
	return &dynamodb.PutItemOutput{}, m.putErr
}

func (m *mockDynamo) UpdateItem(ctx context.Context, input *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	m.updateInputs = append(m.updateInputs, input)
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	return &dynamodb.UpdateItemOutput{}, nil
}

func (m *mockDynamo) GetItem(ctx context.Context, input *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.getOutput == nil {
		return &dynamodb.GetItemOutput{}, nil
	}
	return m.getOutput, nil
}
