package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tablevoice-service/internal/domain/agent"
	xerrors "tablevoice-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AgentRepository struct {
	db *pgxpool.Pool
}

func NewAgentRepository(db *pgxpool.Pool) *AgentRepository {
	return &AgentRepository{db: db}
}

const agentColumns = `
	id, restaurant_id, external_agent_id, voice_id, phone_number, phone_number_sid,
	greeting, style, max_duration_minutes, voicemail_enabled, documents, status,
	call_count, total_call_seconds, last_error, last_error_at, created_at, updated_at
`

// Create inserts a new agent.
func (r *AgentRepository) Create(ctx context.Context, a *agent.Agent) error {
	query := `
		INSERT INTO agents (
			restaurant_id, external_agent_id, voice_id, phone_number, phone_number_sid,
			greeting, style, max_duration_minutes, voicemail_enabled, documents, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at
	`

	docsJSON, err := marshalDocuments(a.Documents)
	if err != nil {
		return err
	}

	err = r.db.QueryRow(
		ctx, query,
		a.RestaurantID, a.ExternalAgentID, a.VoiceID, a.PhoneNumber, a.PhoneNumberSID,
		a.Greeting, a.Style, a.MaxDurationMinutes, a.VoicemailEnabled, docsJSON, a.Status,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create agent: %w", err)
	}

	return nil
}

// FindByID retrieves an agent.
func (r *AgentRepository) FindByID(ctx context.Context, id int64) (*agent.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE id = $1`
	return r.scanAgent(r.db.QueryRow(ctx, query, id))
}

// FindByExternalID retrieves an agent by the voice provider's id.
func (r *AgentRepository) FindByExternalID(ctx context.Context, externalID string) (*agent.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE external_agent_id = $1`
	return r.scanAgent(r.db.QueryRow(ctx, query, externalID))
}

// FindByPhoneNumber retrieves an agent by its assigned phone number.
func (r *AgentRepository) FindByPhoneNumber(ctx context.Context, phone string) (*agent.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE phone_number = $1`
	return r.scanAgent(r.db.QueryRow(ctx, query, phone))
}

// ListByRestaurant lists all agents of a restaurant.
func (r *AgentRepository) ListByRestaurant(ctx context.Context, restaurantID int64) ([]*agent.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE restaurant_id = $1 ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	defer rows.Close()

	var agents []*agent.Agent
	for rows.Next() {
		a, err := r.scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}

	return agents, rows.Err()
}

// Update writes the agent's configuration fields.
func (r *AgentRepository) Update(ctx context.Context, a *agent.Agent) error {
	query := `
		UPDATE agents
		SET external_agent_id = $1, voice_id = $2, phone_number = $3, phone_number_sid = $4,
		    greeting = $5, style = $6, max_duration_minutes = $7, voicemail_enabled = $8,
		    documents = $9, status = $10, updated_at = $11
		WHERE id = $12
	`

	docsJSON, err := marshalDocuments(a.Documents)
	if err != nil {
		return err
	}

	result, err := r.db.Exec(
		ctx, query,
		a.ExternalAgentID, a.VoiceID, a.PhoneNumber, a.PhoneNumberSID,
		a.Greeting, a.Style, a.MaxDurationMinutes, a.VoicemailEnabled,
		docsJSON, a.Status, time.Now(), a.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update agent: %w", err)
	}
	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}

// RecordCallResult bumps usage counters after a completed call.
func (r *AgentRepository) RecordCallResult(ctx context.Context, id int64, durationSeconds int64) error {
	query := `
		UPDATE agents
		SET call_count = call_count + 1,
		    total_call_seconds = total_call_seconds + $1,
		    updated_at = $2
		WHERE id = $3
	`

	result, err := r.db.Exec(ctx, query, durationSeconds, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to record call result: %w", err)
	}
	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

// SetLastError stores the most recent provider error and flips the agent into
// the error status.
func (r *AgentRepository) SetLastError(ctx context.Context, id int64, message string) error {
	query := `
		UPDATE agents
		SET last_error = $1, last_error_at = $2, status = $3, updated_at = $2
		WHERE id = $4
	`

	result, err := r.db.Exec(ctx, query, message, time.Now(), agent.StatusError, id)
	if err != nil {
		return fmt.Errorf("failed to set agent error: %w", err)
	}
	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

// Delete removes a single agent.
func (r *AgentRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.Exec(ctx, `DELETE FROM agents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete agent: %w", err)
	}
	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

func (r *AgentRepository) scanAgent(row rowScanner) (*agent.Agent, error) {
	var a agent.Agent
	var docsJSON []byte

	err := row.Scan(
		&a.ID, &a.RestaurantID, &a.ExternalAgentID, &a.VoiceID, &a.PhoneNumber, &a.PhoneNumberSID,
		&a.Greeting, &a.Style, &a.MaxDurationMinutes, &a.VoicemailEnabled, &docsJSON, &a.Status,
		&a.CallCount, &a.TotalCallSeconds, &a.LastError, &a.LastErrorAt, &a.CreatedAt, &a.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan agent: %w", err)
	}

	if len(docsJSON) > 0 {
		if err := json.Unmarshal(docsJSON, &a.Documents); err != nil {
			return nil, fmt.Errorf("failed to unmarshal documents: %w", err)
		}
	}

	return &a, nil
}

func marshalDocuments(docs []agent.Document) ([]byte, error) {
	if docs == nil {
		docs = []agent.Document{}
	}
	data, err := json.Marshal(docs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal documents: %w", err)
	}
	return data, nil
}
