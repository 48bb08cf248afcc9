package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/Strob0t/IntentMarket/internal/domain/intent"
)

const intentColumns = `id, poster_wallet, poster_name, title, description, category, urgency, budget,
	requirements, status, match_count, is_private, COALESCE(encrypted_data, ''), COALESCE(encryption_method, ''),
	COALESCE(source_platform, ''), COALESCE(source_url, ''), created_at, updated_at`

func scanIntent(row scannable) (intent.Intent, error) {
	var in intent.Intent
	err := row.Scan(
		&in.ID, &in.PosterKey, &in.PosterName, &in.Title, &in.Description, &in.Category, &in.Urgency, &in.Budget,
		&in.Requirements, &in.Status, &in.MatchCount, &in.IsPrivate, &in.EncryptedData, &in.EncryptionMethod,
		&in.SourcePlatform, &in.SourceURL, &in.CreatedAt, &in.UpdatedAt,
	)
	in.Requirements = orEmpty(in.Requirements)
	return in, err
}

// CreateIntent inserts in. Status and match_count always start at their
// initial values regardless of what in carries.
func (s *Store) CreateIntent(ctx context.Context, in *intent.Intent) (*intent.Intent, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO intents (poster_wallet, poster_name, title, description, category, urgency, budget,
			requirements, is_private, encrypted_data, encryption_method, source_platform, source_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING `+intentColumns,
		in.PosterKey, in.PosterName, in.Title, in.Description, in.Category, in.Urgency, in.Budget,
		pgTextArray(in.Requirements), in.IsPrivate, nullIfEmpty(in.EncryptedData), nullIfEmpty(in.EncryptionMethod),
		nullIfEmpty(in.SourcePlatform), nullIfEmpty(in.SourceURL))

	created, err := scanIntent(row)
	if err != nil {
		return nil, mapErr(err, "create intent")
	}
	return &created, nil
}

func (s *Store) GetIntent(ctx context.Context, id string) (*intent.Intent, error) {
	in, err := scanIntent(s.pool.QueryRow(ctx, `SELECT `+intentColumns+` FROM intents WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err, "get intent %s", id)
	}
	return &in, nil
}

func (s *Store) FindIntentBySourceURL(ctx context.Context, sourceURL string) (*intent.Intent, error) {
	in, err := scanIntent(s.pool.QueryRow(ctx, `SELECT `+intentColumns+` FROM intents WHERE source_url = $1`, sourceURL))
	if err != nil {
		return nil, mapErr(err, "find intent by source %s", sourceURL)
	}
	return &in, nil
}

func (s *Store) ListIntents(ctx context.Context, filter intent.ListFilter) ([]intent.Intent, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Category != "" {
		args = append(args, strings.ToLower(filter.Category))
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.PosterKey != "" {
		args = append(args, filter.PosterKey)
		where = append(where, fmt.Sprintf("poster_wallet = $%d", len(args)))
	}

	q := `SELECT ` + intentColumns + ` FROM intents`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		q += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, mapErr(err, "list intents")
	}
	defer rows.Close()

	var intents []intent.Intent
	for rows.Next() {
		in, err := scanIntent(rows)
		if err != nil {
			return nil, mapErr(err, "scan intent")
		}
		intents = append(intents, in)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err, "list intents")
	}
	return orEmpty(intents), nil
}

func (s *Store) UpdateIntentStatus(ctx context.Context, id string, status intent.Status) (*intent.Intent, error) {
	in, err := scanIntent(s.pool.QueryRow(ctx,
		`UPDATE intents SET status = $2, updated_at = now() WHERE id = $1 RETURNING `+intentColumns, id, status))
	if err != nil {
		return nil, mapErr(err, "update intent status %s", id)
	}
	return &in, nil
}

// RefreshMatchCount recounts the intent's matches in the same statement
// that stores the count.
func (s *Store) RefreshMatchCount(ctx context.Context, intentID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		UPDATE intents
		SET match_count = (SELECT count(*) FROM matches WHERE intent_id = $1), updated_at = now()
		WHERE id = $1
		RETURNING match_count`, intentID).Scan(&n)
	if err != nil {
		return 0, mapErr(err, "refresh match count %s", intentID)
	}
	return n, nil
}
