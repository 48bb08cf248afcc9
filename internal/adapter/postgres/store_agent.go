package postgres

import (
	"context"
	"fmt"

	"github.com/Strob0t/IntentMarket/internal/domain/agent"
)

const agentColumns = `id, wallet_address, name, bio, skills, owner_name, owner_contact, is_available, created_at, updated_at`

func scanAgent(row scannable) (agent.Agent, error) {
	var a agent.Agent
	err := row.Scan(&a.ID, &a.Key, &a.Name, &a.Bio, &a.Skills, &a.OwnerName, &a.OwnerContact, &a.Available, &a.CreatedAt, &a.UpdatedAt)
	a.Skills = orEmpty(a.Skills)
	return a, err
}

// UpsertAgent registers an agent or updates the one holding the same key.
func (s *Store) UpsertAgent(ctx context.Context, req *agent.RegisterRequest) (*agent.Agent, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO agents (wallet_address, name, bio, skills, owner_name, owner_contact, is_available)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (wallet_address) DO UPDATE SET
			name          = EXCLUDED.name,
			bio           = EXCLUDED.bio,
			skills        = EXCLUDED.skills,
			owner_name    = EXCLUDED.owner_name,
			owner_contact = EXCLUDED.owner_contact,
			is_available  = EXCLUDED.is_available,
			updated_at    = now()
		RETURNING `+agentColumns,
		req.Key, req.Name, req.Bio, pgTextArray(req.Skills), req.OwnerName, req.OwnerContact, req.IsAvailable())

	a, err := scanAgent(row)
	if err != nil {
		return nil, mapErr(err, "upsert agent %s", req.Key)
	}
	return &a, nil
}

func (s *Store) GetAgent(ctx context.Context, id string) (*agent.Agent, error) {
	a, err := scanAgent(s.pool.QueryRow(ctx, `SELECT `+agentColumns+` FROM agents WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err, "get agent %s", id)
	}
	return &a, nil
}

func (s *Store) GetAgentByKey(ctx context.Context, key string) (*agent.Agent, error) {
	a, err := scanAgent(s.pool.QueryRow(ctx, `SELECT `+agentColumns+` FROM agents WHERE wallet_address = $1`, key))
	if err != nil {
		return nil, mapErr(err, "get agent by key %s", key)
	}
	return &a, nil
}

func (s *Store) ListAgents(ctx context.Context, filter agent.ListFilter) ([]agent.Agent, error) {
	q := `SELECT ` + agentColumns + ` FROM agents`
	var args []any
	if filter.AvailableOnly {
		q += ` WHERE is_available`
	}
	q += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		q += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, mapErr(err, "list agents")
	}
	defer rows.Close()

	var agents []agent.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, mapErr(err, "scan agent")
		}
		agents = append(agents, a)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err, "list agents")
	}
	return orEmpty(agents), nil
}
