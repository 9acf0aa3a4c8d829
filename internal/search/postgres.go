package search

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avukic/skolar/internal/domain"
)

// PG implements Searcher directly against the messages table. It is the
// fallback when Meilisearch is unreachable; if Postgres is down, the whole
// server is down anyway.
type PG struct {
	pool *pgxpool.Pool
}

func NewPG(pool *pgxpool.Pool) *PG {
	return &PG{pool: pool}
}

func (p *PG) Healthy() bool {
	return true
}

func (p *PG) Search(ctx context.Context, q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT id, scope, author_id, body, created_at, count(*) OVER ()
		FROM messages
		WHERE scope = $1 AND deleted_at IS NULL
			AND to_tsvector('simple', body) @@ plainto_tsquery('simple', $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`
	rows, err := p.pool.Query(ctx, query, string(q.Scope), q.Text, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var results []Result
	total := 0
	for rows.Next() {
		var r Result
		var scope string
		if err := rows.Scan(&r.ID, &scope, &r.AuthorID, &r.Snippet, &r.CreatedAt, &total); err != nil {
			return nil, 0, err
		}
		r.Scope = domain.Scope(scope)
		results = append(results, r)
	}
	return results, total, rows.Err()
}
