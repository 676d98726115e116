package vectorstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	pgvector "github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/ShubAce/ConvoTrack-Assigment/models"
)

// pgChunk is the row layout of both the live and the staging table.
type pgChunk struct {
	bun.BaseModel `bun:"table:chunks,alias:c"`

	ID         string          `bun:"id,pk"`
	DocumentID string          `bun:"document_id,notnull"`
	URL        string          `bun:"url"`
	ChunkIndex int             `bun:"chunk_index,notnull"`
	Seq        int             `bun:"seq,notnull"`
	Content    string          `bun:"content,notnull"`
	Embedding  pgvector.Vector `bun:"embedding,notnull"`
}

type pgScoredChunk struct {
	pgChunk
	Score float64 `bun:"score"`
}

var tableNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,54}$`)

// pgvectorIndex keeps the live generation in one table and rebuilds into a
// staging table that replaces it inside a single transaction.
type pgvectorIndex struct {
	db        *bun.DB
	table     string
	staging   string
	dimension int
}

// NewPGVectorIndex connects to Postgres with the pgvector extension.
func NewPGVectorIndex(ctx context.Context, dsn, table string, dimension int) (Index, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	idx, err := newPGVectorIndex(ctx, db, table, dimension)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return idx, nil
}

func newPGVectorIndex(ctx context.Context, db *bun.DB, table string, dimension int) (*pgvectorIndex, error) {
	table = pgTableName(table)
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("pgvector: invalid table name %q", table)
	}
	if dimension <= 0 {
		return nil, errors.New("pgvector: dimension must be greater than zero")
	}
	p := &pgvectorIndex{db: db, table: table, staging: table + "_staging", dimension: dimension}
	if _, err := db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return nil, fmt.Errorf("pgvector: enable extension: %w", err)
	}
	if err := p.createTable(ctx, db, p.table); err != nil {
		return nil, err
	}
	return p, nil
}

// pgTableName maps a collection name such as "convotrack-casestudies" to a
// Postgres identifier.
func pgTableName(collection string) string {
	out := make([]byte, 0, len(collection))
	for _, r := range []byte(collection) {
		switch {
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}

func (p *pgvectorIndex) createTable(ctx context.Context, db bun.IDB, table string) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		url TEXT,
		chunk_index INTEGER NOT NULL,
		seq INTEGER NOT NULL,
		content TEXT NOT NULL,
		embedding vector(%d) NOT NULL
	)`, table, p.dimension)
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("pgvector: create table %s: %w", table, err)
	}
	return nil
}

func (p *pgvectorIndex) Dimension() int { return p.dimension }

func (p *pgvectorIndex) Count(ctx context.Context) (int, error) {
	n, err := p.db.NewSelect().TableExpr("?", bun.Ident(p.table)).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("pgvector: count: %w", err)
	}
	return n, nil
}

func (p *pgvectorIndex) Upsert(ctx context.Context, entries []models.IndexEntry) error {
	if err := checkEntries(entries, p.dimension); err != nil {
		return err
	}
	return p.insert(ctx, p.db, p.table, entries, true)
}

func (p *pgvectorIndex) insert(ctx context.Context, db bun.IDB, table string, entries []models.IndexEntry, upsert bool) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]pgChunk, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, pgChunk{
			ID:         e.ID,
			DocumentID: e.Chunk.DocumentID,
			URL:        e.Chunk.URL,
			ChunkIndex: e.Chunk.Index,
			Seq:        e.Chunk.Seq,
			Content:    e.Chunk.Text,
			Embedding:  pgvector.NewVector(e.Embedding),
		})
	}
	q := db.NewInsert().Model(&rows).ModelTableExpr("?", bun.Ident(table))
	if upsert {
		q = q.On("CONFLICT (id) DO UPDATE").
			Set("document_id = EXCLUDED.document_id").
			Set("url = EXCLUDED.url").
			Set("chunk_index = EXCLUDED.chunk_index").
			Set("seq = EXCLUDED.seq").
			Set("content = EXCLUDED.content").
			Set("embedding = EXCLUDED.embedding")
	}
	if _, err := q.Exec(ctx); err != nil {
		return fmt.Errorf("pgvector: insert into %s: %w", table, err)
	}
	return nil
}

func (p *pgvectorIndex) Rebuild(ctx context.Context, entries []models.IndexEntry) error {
	if err := checkEntries(entries, p.dimension); err != nil {
		return err
	}
	if _, err := p.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", p.staging)); err != nil {
		return fmt.Errorf("pgvector: drop staging: %w", err)
	}
	if err := p.createTable(ctx, p.db, p.staging); err != nil {
		return err
	}
	if err := p.insert(ctx, p.db, p.staging, entries, false); err != nil {
		if _, dropErr := p.db.ExecContext(context.WithoutCancel(ctx), fmt.Sprintf("DROP TABLE IF EXISTS %s", p.staging)); dropErr != nil {
			log.Warn().Err(dropErr).Str("table", p.staging).Msg("INDEX: could not drop staging table")
		}
		return err
	}
	err := p.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", p.table)); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s RENAME TO %s", p.staging, p.table))
		return err
	})
	if err != nil {
		return fmt.Errorf("pgvector: swap generation: %w", err)
	}
	return nil
}

func (p *pgvectorIndex) Query(ctx context.Context, embedding []float32, k int) ([]models.ScoredChunk, error) {
	if err := checkQuery(embedding, p.dimension); err != nil {
		return nil, err
	}
	if k <= 0 {
		return []models.ScoredChunk{}, nil
	}
	vec := pgvector.NewVector(embedding)
	var rows []pgScoredChunk
	err := p.db.NewSelect().
		Model(&rows).
		ModelTableExpr("? AS c", bun.Ident(p.table)).
		Column("id", "document_id", "url", "chunk_index", "seq", "content").
		ColumnExpr("1 - (embedding <=> ?) AS score", vec).
		OrderExpr("embedding <=> ? ASC, seq ASC", vec).
		Limit(k).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("pgvector: query: %w", err)
	}
	out := make([]models.ScoredChunk, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.ScoredChunk{
			Chunk: models.Chunk{
				Text:       r.Content,
				DocumentID: r.DocumentID,
				URL:        r.URL,
				Index:      r.ChunkIndex,
				Seq:        r.Seq,
			},
			Score: r.Score,
		})
	}
	return out, nil
}

func (p *pgvectorIndex) Close() error {
	return p.db.Close()
}
