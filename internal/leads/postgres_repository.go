package leads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores leads in the relational database.
type PostgresRepository struct {
	db pgxQuerier
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("leads: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

func newPostgresRepositoryWithDB(db pgxQuerier) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new row.
func (r *PostgresRepository) Create(ctx context.Context, lead *Lead) (*Lead, error) {
	spamJSON, err := marshalNullable(lead.Spam)
	if err != nil {
		return nil, fmt.Errorf("leads: marshal spam annotation: %w", err)
	}
	qualificationJSON, err := marshalNullable(lead.Qualification)
	if err != nil {
		return nil, fmt.Errorf("leads: marshal qualification: %w", err)
	}
	scoreJSON, err := marshalNullable(lead.Score)
	if err != nil {
		return nil, fmt.Errorf("leads: marshal score: %w", err)
	}

	id := uuid.New()
	query := `
		INSERT INTO leads (
			id, name, email, company, phone, project_type, message, source_ip,
			status, spam, qualification, score, client_notified, admin_notified
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at
	`
	var createdAt, updatedAt time.Time
	if err := r.db.QueryRow(ctx, query,
		id,
		lead.Name,
		lead.Email,
		lead.Company,
		lead.Phone,
		string(lead.ProjectType),
		lead.Message,
		lead.SourceIP,
		string(lead.Status),
		spamJSON,
		qualificationJSON,
		scoreJSON,
		lead.ClientNotified,
		lead.AdminNotified,
	).Scan(&createdAt, &updatedAt); err != nil {
		return nil, fmt.Errorf("leads: insert failed: %w", err)
	}

	stored := *lead
	stored.ID = id.String()
	stored.CreatedAt = createdAt
	stored.UpdatedAt = updatedAt
	return &stored, nil
}

// Update writes the non-nil patch fields.
func (r *PostgresRepository) Update(ctx context.Context, id string, patch Patch) error {
	if patch.Empty() {
		return ErrEmptyPatch
	}
	if err := patch.Validate(); err != nil {
		return err
	}
	if _, err := uuid.Parse(id); err != nil {
		return ErrLeadNotFound
	}
	qualificationJSON, err := marshalNullable(patch.Qualification)
	if err != nil {
		return fmt.Errorf("leads: marshal qualification: %w", err)
	}
	scoreJSON, err := marshalNullable(patch.Score)
	if err != nil {
		return fmt.Errorf("leads: marshal score: %w", err)
	}

	query := `
		UPDATE leads
		SET qualification = COALESCE($2, qualification),
		    score = COALESCE($3, score),
		    client_notified = COALESCE($4, client_notified),
		    admin_notified = COALESCE($5, admin_notified),
		    updated_at = now()
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, id, qualificationJSON, scoreJSON, patch.ClientNotified, patch.AdminNotified)
	if err != nil {
		return fmt.Errorf("leads: update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLeadNotFound
	}
	return nil
}

// GetByID fetches a single lead.
// Ids that are not UUIDs cannot match a row and report ErrLeadNotFound.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Lead, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrLeadNotFound
	}
	query := `
		SELECT id, name, email, company, phone, project_type, message, source_ip,
		       status, spam, qualification, score, client_notified, admin_notified,
		       created_at, updated_at
		FROM leads
		WHERE id = $1
	`
	var lead Lead
	var projectType, status string
	var spamJSON, qualificationJSON, scoreJSON []byte
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&lead.ID,
		&lead.Name,
		&lead.Email,
		&lead.Company,
		&lead.Phone,
		&projectType,
		&lead.Message,
		&lead.SourceIP,
		&status,
		&spamJSON,
		&qualificationJSON,
		&scoreJSON,
		&lead.ClientNotified,
		&lead.AdminNotified,
		&lead.CreatedAt,
		&lead.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLeadNotFound
		}
		return nil, fmt.Errorf("leads: select failed: %w", err)
	}
	lead.ProjectType = ProjectType(projectType)
	lead.Status = Status(status)

	if err := unmarshalNullable(spamJSON, &lead.Spam); err != nil {
		return nil, fmt.Errorf("leads: decode spam annotation: %w", err)
	}
	if err := unmarshalNullable(qualificationJSON, &lead.Qualification); err != nil {
		return nil, fmt.Errorf("leads: decode qualification: %w", err)
	}
	if err := unmarshalNullable(scoreJSON, &lead.Score); err != nil {
		return nil, fmt.Errorf("leads: decode score: %w", err)
	}
	return &lead, nil
}

func marshalNullable[T any](v *T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func unmarshalNullable[T any](data []byte, dst **T) error {
	if len(data) == 0 {
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*dst = &v
	return nil
}
