package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true: if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search executes a UNION ALL query across prds and prd_comments using
// plainto_tsquery and ts_rank, with ts_headline for snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
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

	tsQuery := "plainto_tsquery('english', $1)"
	args := []any{q.Text}
	argN := 2

	var subQueries []string

	if q.FilterType == "" || q.FilterType == ResultPRD {
		prdWhere := "p.fts @@ " + tsQuery
		if q.FilterTeamID != "" {
			prdWhere += fmt.Sprintf(" AND p.team_id = $%d", argN)
			args = append(args, q.FilterTeamID)
			argN++
		}
		if q.PublicOnly {
			prdWhere += " AND p.visibility = 'public'"
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'prd'::text AS type, p.id, p.title,
				ts_headline('english', coalesce(p.summary, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				p.id AS prd_id, p.team_id,
				p.visibility,
				ts_rank(p.fts, %s) AS rank
			FROM prds p
			WHERE %s`, tsQuery, tsQuery, prdWhere))
	}

	if q.FilterType == "" || q.FilterType == ResultComment {
		commentWhere := "c.fts @@ " + tsQuery
		if q.FilterTeamID != "" {
			commentWhere += fmt.Sprintf(" AND p.team_id = $%d", argN)
			args = append(args, q.FilterTeamID)
			argN++
		}
		if q.PublicOnly {
			commentWhere += " AND p.visibility = 'public'"
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'comment'::text AS type, c.id, c.section AS title,
				ts_headline('english', coalesce(c.content, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				c.prd_id, p.team_id,
				p.visibility,
				ts_rank(c.fts, %s) AS rank
			FROM prd_comments c
			JOIN prds p ON p.id = c.prd_id
			WHERE %s`, tsQuery, tsQuery, commentWhere))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))

	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, prd_id, team_id, visibility
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`,
		strings.Join(subQueries, " UNION ALL "),
		limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.PRDID, &r.TeamID, &r.Visibility); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]PRDRecord, []CommentRecord, error) {
	prdRows, err := p.db.QueryContext(ctx, `
		SELECT id, title, coalesce(summary, ''), team_id, status, visibility
		FROM prds
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load prds: %w", err)
	}
	defer prdRows.Close()

	prds := make([]PRDRecord, 0)
	for prdRows.Next() {
		var rec PRDRecord
		if err := prdRows.Scan(&rec.ID, &rec.Title, &rec.Summary, &rec.TeamID, &rec.Status, &rec.Visibility); err != nil {
			return nil, nil, fmt.Errorf("scan prd: %w", err)
		}
		prds = append(prds, rec)
	}
	if err := prdRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate prds: %w", err)
	}

	commentRows, err := p.db.QueryContext(ctx, `
		SELECT c.id, c.content, c.section, c.prd_id, p.team_id, p.visibility
		FROM prd_comments c
		JOIN prds p ON p.id = c.prd_id
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load comments: %w", err)
	}
	defer commentRows.Close()

	comments := make([]CommentRecord, 0)
	for commentRows.Next() {
		var rec CommentRecord
		if err := commentRows.Scan(&rec.ID, &rec.Content, &rec.Section, &rec.PRDID, &rec.TeamID, &rec.Visibility); err != nil {
			return nil, nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, rec)
	}
	if err := commentRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate comments: %w", err)
	}

	return prds, comments, nil
}
