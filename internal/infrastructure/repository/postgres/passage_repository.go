package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/passage-assistant/internal/core/domain"
)

// PassageRepository stores chunk hierarchies, one work at a time.
type PassageRepository struct {
	db *sql.DB
}

func NewPassageRepository(db *sql.DB) *PassageRepository {
	return &PassageRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *PassageRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101501)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS passage_parents (
	id TEXT PRIMARY KEY,
	work_id TEXT NOT NULL,
	text TEXT NOT NULL,
	hash TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS passage_children (
	id TEXT PRIMARY KEY,
	parent_id TEXT NOT NULL REFERENCES passage_parents(id) ON DELETE CASCADE,
	work_id TEXT NOT NULL,
	author TEXT NOT NULL,
	work_title TEXT NOT NULL,
	section_id TEXT NOT NULL DEFAULT '',
	paragraph_id TEXT NOT NULL DEFAULT '',
	text TEXT NOT NULL,
	source_url TEXT NOT NULL DEFAULT '',
	lang TEXT NOT NULL,
	hash TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_passage_parents_work_id ON passage_parents(work_id);
CREATE INDEX IF NOT EXISTS idx_passage_children_work_id ON passage_children(work_id);
CREATE INDEX IF NOT EXISTS idx_passage_children_hash ON passage_children(hash);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// ReplaceWork swaps all rows of one work inside a transaction and reports
// whether any id or content hash differs from what was stored.
func (r *PassageRepository) ReplaceWork(ctx context.Context, h domain.Hierarchy) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin replace tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stored, err := storedHashes(ctx, tx, h.WorkID)
	if err != nil {
		return false, err
	}
	changed := !sameHashes(stored, hierarchyHashes(h))

	if _, err := tx.ExecContext(ctx, `DELETE FROM passage_children WHERE work_id = $1`, h.WorkID); err != nil {
		return false, fmt.Errorf("delete children: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM passage_parents WHERE work_id = $1`, h.WorkID); err != nil {
		return false, fmt.Errorf("delete parents: %w", err)
	}

	now := time.Now().UTC()
	for _, p := range h.Parents {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO passage_parents (id, work_id, text, hash, updated_at)
VALUES ($1,$2,$3,$4,$5)
`, p.ID, p.WorkID, p.Text, p.Hash, now); err != nil {
			return false, fmt.Errorf("insert parent %s: %w", p.ID, err)
		}
	}
	for _, c := range h.Children {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO passage_children (
	id, parent_id, work_id, author, work_title, section_id, paragraph_id, text, source_url, lang, hash, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
`, c.ID, c.ParentID, c.WorkID, c.Author, c.WorkTitle, c.SectionID, c.ParagraphID, c.Text, c.SourceURL, c.Lang, c.Hash, now); err != nil {
			return false, fmt.Errorf("insert child %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit replace tx: %w", err)
	}
	return changed, nil
}

// ListParents loads every stored parent for the context expander.
func (r *PassageRepository) ListParents(ctx context.Context) ([]domain.ParentChunk, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, work_id, text, hash
FROM passage_parents
ORDER BY id
`)
	if err != nil {
		return nil, fmt.Errorf("query parents: %w", err)
	}
	defer rows.Close()

	var out []domain.ParentChunk
	for rows.Next() {
		var p domain.ParentChunk
		if err := rows.Scan(&p.ID, &p.WorkID, &p.Text, &p.Hash); err != nil {
			return nil, fmt.Errorf("scan parent: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate parents: %w", err)
	}
	return out, nil
}

func storedHashes(ctx context.Context, tx *sql.Tx, workID string) (map[string]string, error) {
	rows, err := tx.QueryContext(ctx, `
SELECT 'p:' || id, hash FROM passage_parents WHERE work_id = $1
UNION ALL
SELECT 'c:' || id, hash FROM passage_children WHERE work_id = $1
`, workID)
	if err != nil {
		return nil, fmt.Errorf("query stored hashes: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var key, hash string
		if err := rows.Scan(&key, &hash); err != nil {
			return nil, fmt.Errorf("scan stored hash: %w", err)
		}
		out[key] = hash
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stored hashes: %w", err)
	}
	return out, nil
}

func hierarchyHashes(h domain.Hierarchy) map[string]string {
	out := make(map[string]string, len(h.Parents)+len(h.Children))
	for _, p := range h.Parents {
		out["p:"+p.ID] = p.Hash
	}
	for _, c := range h.Children {
		out["c:"+c.ID] = c.Hash
	}
	return out
}

func sameHashes(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
