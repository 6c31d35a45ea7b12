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

// Healthy always returns true. If Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search executes a UNION ALL query across documents and comments using
// plainto_tsquery and ts_rank, with ts_headline for comment snippets.
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

	projectFilter := func(column string) string {
		if q.FilterProjectID != "" {
			clause := fmt.Sprintf(" AND %s = $%d", column, argN)
			args = append(args, q.FilterProjectID)
			argN++
			return clause
		}
		if q.ProjectIDs != nil {
			clause := fmt.Sprintf(" AND %s = ANY($%d)", column, argN)
			args = append(args, projectIDArray(q.ProjectIDs))
			argN++
			return clause
		}
		return ""
	}

	var subQueries []string

	if q.FilterType == "" || q.FilterType == ResultDocument {
		docWhere := "d.search_tsv @@ " + tsQuery + projectFilter("d.project_id")
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'document'::text AS type, d.id, d.name AS title,
				''::text AS snippet,
				d.id AS document_id, d.project_id,
				ts_rank(d.search_tsv, %s) AS rank
			FROM documents d
			WHERE %s`, tsQuery, docWhere))
	}

	if q.FilterType == "" || q.FilterType == ResultComment {
		commentWhere := "c.search_tsv @@ " + tsQuery + projectFilter("d.project_id")
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'comment'::text AS type, c.id, u.display_name AS title,
				ts_headline('english', coalesce(c.body, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				c.document_id, d.project_id,
				ts_rank(c.search_tsv, %s) AS rank
			FROM comments c
			JOIN documents d ON d.id = c.document_id
			JOIN users u ON u.id = c.author_id
			WHERE %s`, tsQuery, tsQuery, commentWhere))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))

	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, document_id, project_id
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
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.DocumentID, &r.ProjectID); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// projectIDArray renders a pg text array literal, the stdlib driver has no
// native []string binding.
func projectIDArray(ids []string) string {
	escaped := make([]string, len(ids))
	for i, id := range ids {
		escaped[i] = `"` + strings.ReplaceAll(id, `"`, `\"`) + `"`
	}
	return "{" + strings.Join(escaped, ",") + "}"
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]DocumentRecord, []CommentRecord, error) {
	docRows, err := p.db.QueryContext(ctx, `
		SELECT id, name, content_type, project_id
		FROM documents
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load documents: %w", err)
	}
	defer docRows.Close()

	documents := make([]DocumentRecord, 0)
	for docRows.Next() {
		var d DocumentRecord
		if err := docRows.Scan(&d.ID, &d.Name, &d.ContentType, &d.ProjectID); err != nil {
			return nil, nil, fmt.Errorf("scan document: %w", err)
		}
		documents = append(documents, d)
	}
	if err := docRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate documents: %w", err)
	}

	commentRows, err := p.db.QueryContext(ctx, `
		SELECT c.id, c.body, u.display_name, c.document_id, d.project_id
		FROM comments c
		JOIN documents d ON d.id = c.document_id
		JOIN users u ON u.id = c.author_id
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load comments: %w", err)
	}
	defer commentRows.Close()

	comments := make([]CommentRecord, 0)
	for commentRows.Next() {
		var c CommentRecord
		if err := commentRows.Scan(&c.ID, &c.Body, &c.AuthorName, &c.DocumentID, &c.ProjectID); err != nil {
			return nil, nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	if err := commentRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate comments: %w", err)
	}

	return documents, comments, nil
}
