package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tablevoice-service/internal/domain/agent"
	xerrors "tablevoice-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

type AgentToolRepository struct {
	db *pgxpool.Pool
}

func NewAgentToolRepository(db *pgxpool.Pool) *AgentToolRepository {
	return &AgentToolRepository{db: db}
}

// Upsert creates or updates the toggle for (agent, tool name).
func (r *AgentToolRepository) Upsert(ctx context.Context, t *agent.Tool) error {
	query := `
		INSERT INTO agent_tools (agent_id, tool_name, enabled, provider_config)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (agent_id, tool_name)
		DO UPDATE SET enabled = EXCLUDED.enabled,
		              provider_config = EXCLUDED.provider_config,
		              updated_at = $5
		RETURNING id, created_at, updated_at
	`

	var configJSON []byte
	var err error
	if t.ProviderConfig != nil {
		configJSON, err = json.Marshal(t.ProviderConfig)
		if err != nil {
			return fmt.Errorf("failed to marshal provider config: %w", err)
		}
	}

	err = r.db.QueryRow(
		ctx, query,
		t.AgentID, t.ToolName, t.Enabled, configJSON, time.Now(),
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to upsert agent tool: %w", err)
	}

	return nil
}

// ListByAgent returns all tool toggles for an agent.
func (r *AgentToolRepository) ListByAgent(ctx context.Context, agentID int64) ([]*agent.Tool, error) {
	query := `
		SELECT id, agent_id, tool_name, enabled, provider_config, created_at, updated_at
		FROM agent_tools
		WHERE agent_id = $1
		ORDER BY tool_name
	`

	rows, err := r.db.Query(ctx, query, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list agent tools: %w", err)
	}
	defer rows.Close()

	var tools []*agent.Tool
	for rows.Next() {
		var t agent.Tool
		var configJSON []byte
		if err := rows.Scan(&t.ID, &t.AgentID, &t.ToolName, &t.Enabled, &configJSON, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan agent tool: %w", err)
		}
		if len(configJSON) > 0 {
			if err := json.Unmarshal(configJSON, &t.ProviderConfig); err != nil {
				return nil, fmt.Errorf("failed to unmarshal provider config: %w", err)
			}
		}
		tools = append(tools, &t)
	}

	return tools, rows.Err()
}

// Delete removes one tool toggle.
func (r *AgentToolRepository) Delete(ctx context.Context, agentID int64, toolName string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM agent_tools WHERE agent_id = $1 AND tool_name = $2`, agentID, toolName)
	if err != nil {
		return fmt.Errorf("failed to delete agent tool: %w", err)
	}
	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}
