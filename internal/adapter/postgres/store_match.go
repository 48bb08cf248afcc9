package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/Strob0t/IntentMarket/internal/domain/match"
)

// matchSelect resolves the candidate's display name from whichever table
// the candidate reference points at.
const matchSelect = `
	SELECT m.id, m.intent_id, m.candidate_kind, m.candidate_id, COALESCE(a.name, ci.title, ''),
		m.match_type, m.match_score, m.match_reason, COALESCE(m.agent_message, ''), m.status, m.created_at, m.updated_at
	FROM matches m
	LEFT JOIN agents a ON m.candidate_kind = 'agent' AND a.id = m.candidate_id
	LEFT JOIN intents ci ON m.candidate_kind = 'intent' AND ci.id = m.candidate_id`

func scanMatch(row scannable) (match.Match, error) {
	var m match.Match
	err := row.Scan(&m.ID, &m.IntentID, &m.CandidateKind, &m.CandidateID, &m.CandidateName,
		&m.Type, &m.Score, &m.Reason, &m.Message, &m.Status, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

// UpsertMatch enforces one row per (intent, candidate) through the table's
// unique constraint. Existing rows keep their status and message.
func (s *Store) UpsertMatch(ctx context.Context, key match.Key, data match.Upsert) (*match.Match, bool, error) {
	var (
		m        match.Match
		inserted bool
	)
	err := s.pool.QueryRow(ctx, `
		INSERT INTO matches (intent_id, candidate_kind, candidate_id, match_type, match_score, match_reason, status)
		VALUES ($1, $2, $3, $4, $5, $6, 'proposed')
		ON CONFLICT (intent_id, candidate_kind, candidate_id) DO UPDATE SET
			match_type   = EXCLUDED.match_type,
			match_score  = EXCLUDED.match_score,
			match_reason = EXCLUDED.match_reason,
			updated_at   = now()
		RETURNING id, intent_id, candidate_kind, candidate_id, match_type, match_score, match_reason,
			COALESCE(agent_message, ''), status, created_at, updated_at, (xmax = 0)`,
		key.IntentID, key.CandidateKind, key.CandidateID, data.Type, match.RoundScore(data.Score), data.Reason,
	).Scan(&m.ID, &m.IntentID, &m.CandidateKind, &m.CandidateID, &m.Type, &m.Score, &m.Reason,
		&m.Message, &m.Status, &m.CreatedAt, &m.UpdatedAt, &inserted)
	if err != nil {
		return nil, false, mapErr(err, "upsert match %s", key)
	}
	return &m, inserted, nil
}

func (s *Store) GetMatch(ctx context.Context, id string) (*match.Match, error) {
	m, err := scanMatch(s.pool.QueryRow(ctx, matchSelect+` WHERE m.id = $1`, id))
	if err != nil {
		return nil, mapErr(err, "get match %s", id)
	}
	return &m, nil
}

// ListMatchesByIntent returns the intent's matches, best score first.
func (s *Store) ListMatchesByIntent(ctx context.Context, intentID string) ([]match.Match, error) {
	return s.queryMatches(ctx, matchSelect+` WHERE m.intent_id = $1 ORDER BY m.match_score DESC, m.created_at ASC`, intentID)
}

func (s *Store) ListMatches(ctx context.Context, filter match.ListFilter) ([]match.Match, error) {
	var (
		where []string
		args  []any
	)
	if filter.IntentID != "" {
		args = append(args, filter.IntentID)
		where = append(where, fmt.Sprintf("m.intent_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("m.status = $%d", len(args)))
	}
	q := matchSelect
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY m.match_score DESC, m.created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		q += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	return s.queryMatches(ctx, q, args...)
}

func (s *Store) UpdateMatchStatus(ctx context.Context, id string, status match.Status) (*match.Match, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE matches SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err := execExpectOne(tag, err, "update match status %s", id); err != nil {
		return nil, err
	}
	return s.GetMatch(ctx, id)
}

func (s *Store) queryMatches(ctx context.Context, q string, args ...any) ([]match.Match, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, mapErr(err, "list matches")
	}
	defer rows.Close()

	var matches []match.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, mapErr(err, "scan match")
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err, "list matches")
	}
	return orEmpty(matches), nil
}
