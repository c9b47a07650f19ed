package repo

import (
	"context"
	"database/sql"
	"strings"

	"github.com/didi/gendry/builder"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/clausea/clausea/internal/model"
	"github.com/clausea/clausea/internal/pkg/dbutil"
	"github.com/clausea/clausea/internal/pkg/errors"
)

type ChunkRepo struct {
	db *sql.DB
}

func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// ScoredChunk pairs a chunk with the similarity score the store computed
// for it. Lexical and exact matches carry no store score.
type ScoredChunk struct {
	Chunk model.Chunk
	Score float64
}

func (r *ChunkRepo) InsertChunks(ctx context.Context, chunks []*model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	data := make([]map[string]interface{}, 0, len(chunks))
	for _, c := range chunks {
		var embedding interface{}
		if len(c.Embedding) > 0 {
			embedding = pgvector.NewVector(c.Embedding)
		}
		data = append(data, map[string]interface{}{
			"id":          c.ID,
			"source_id":   c.SourceID,
			"tenant_id":   c.TenantID,
			"content":     c.Content,
			"embedding":   embedding,
			"token_count": c.TokenCount,
			"position":    c.Position,
			"ctime":       c.Ctime,
		})
	}
	sqlStr, args, err := builder.BuildInsert("chunks", data)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *ChunkRepo) DeleteBySource(ctx context.Context, tenantID, sourceID string) error {
	where := map[string]interface{}{"tenant_id": tenantID, "source_id": sourceID}
	sqlStr, args, err := builder.BuildDelete("chunks", where)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *ChunkRepo) CountBySource(ctx context.Context, tenantID, sourceID string) (int, error) {
	const query = `SELECT COUNT(1) FROM chunks WHERE tenant_id = $1 AND source_id = $2`
	var count int
	err := r.db.QueryRowContext(ctx, query, tenantID, sourceID).Scan(&count)
	return count, err
}

// LexicalSearch runs a full-text query over chunk content, scoped to the
// tenant and optionally to a set of sources.
func (r *ChunkRepo) LexicalSearch(ctx context.Context, tenantID string, sourceIDs []string, query string, limit int) ([]model.Chunk, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}
	var rows *sql.Rows
	var err error
	if len(sourceIDs) > 0 {
		const q = `
			SELECT id, source_id, tenant_id, content, token_count, position, ctime
			FROM chunks
			WHERE tenant_id = $1
			  AND source_id = ANY($2)
			  AND content_tsv @@ websearch_to_tsquery('french', $3)
			ORDER BY ts_rank(content_tsv, websearch_to_tsquery('french', $3)) DESC
			LIMIT $4
		`
		rows, err = r.db.QueryContext(ctx, q, tenantID, pq.Array(sourceIDs), query, limit)
	} else {
		const q = `
			SELECT id, source_id, tenant_id, content, token_count, position, ctime
			FROM chunks
			WHERE tenant_id = $1
			  AND content_tsv @@ websearch_to_tsquery('french', $2)
			ORDER BY ts_rank(content_tsv, websearch_to_tsquery('french', $2)) DESC
			LIMIT $3
		`
		rows, err = r.db.QueryContext(ctx, q, tenantID, query, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunks(rows)
}

// SimilaritySearch returns the topK nearest chunks by cosine distance at
// the tenant scope, with score = 1 - distance.
func (r *ChunkRepo) SimilaritySearch(ctx context.Context, tenantID string, embedding []float32, topK int) ([]ScoredChunk, error) {
	if topK <= 0 {
		topK = 6
	}
	const query = `
		SELECT id, source_id, tenant_id, content, token_count, position, ctime,
		       1 - (embedding <=> $2) AS score
		FROM chunks
		WHERE tenant_id = $1 AND embedding IS NOT NULL
		ORDER BY embedding <=> $2
		LIMIT $3
	`
	rows, err := r.db.QueryContext(ctx, query, tenantID, pgvector.NewVector(embedding), topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ScoredChunk
	for rows.Next() {
		var c model.Chunk
		var score float64
		if err := rows.Scan(&c.ID, &c.SourceID, &c.TenantID, &c.Content, &c.TokenCount, &c.Position, &c.Ctime, &score); err != nil {
			return nil, err
		}
		out = append(out, ScoredChunk{Chunk: c, Score: score})
	}
	return out, rows.Err()
}

// ExactPhraseSearch finds chunks whose content contains the literal phrase,
// case-insensitively. sourceID may be empty for a tenant-wide search.
func (r *ChunkRepo) ExactPhraseSearch(ctx context.Context, tenantID, sourceID, phrase string, limit int) ([]model.Chunk, error) {
	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}
	pattern := "%" + escapeLike(phrase) + "%"
	var rows *sql.Rows
	var err error
	if sourceID != "" {
		const q = `
			SELECT id, source_id, tenant_id, content, token_count, position, ctime
			FROM chunks
			WHERE tenant_id = $1 AND source_id = $2 AND content ILIKE $3
			ORDER BY position ASC
			LIMIT $4
		`
		rows, err = r.db.QueryContext(ctx, q, tenantID, sourceID, pattern, limit)
	} else {
		const q = `
			SELECT id, source_id, tenant_id, content, token_count, position, ctime
			FROM chunks
			WHERE tenant_id = $1 AND content ILIKE $2
			ORDER BY position ASC
			LIMIT $3
		`
		rows, err = r.db.QueryContext(ctx, q, tenantID, pattern, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunks(rows)
}

// ListMissingEmbedding returns chunks of a source that were inserted without
// an embedding vector, in document order.
func (r *ChunkRepo) ListMissingEmbedding(ctx context.Context, sourceID string, limit int) ([]model.Chunk, error) {
	if limit <= 0 {
		limit = 256
	}
	const q = `
		SELECT id, source_id, tenant_id, content, token_count, position, ctime
		FROM chunks
		WHERE source_id = $1 AND embedding IS NULL
		ORDER BY position ASC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, q, sourceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunks(rows)
}

// UpdateEmbeddings writes the computed vectors back in a single transaction,
// so a source never ends up with a partially embedded batch.
func (r *ChunkRepo) UpdateEmbeddings(ctx context.Context, ids []string, embeddings [][]float32) error {
	if len(ids) != len(embeddings) {
		return errors.ErrInvalid
	}
	if len(ids) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	const q = `UPDATE chunks SET embedding = $1 WHERE id = $2`
	for i, id := range ids {
		if _, err := tx.ExecContext(ctx, q, pgvector.NewVector(embeddings[i]), id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

func scanChunks(rows *sql.Rows) ([]model.Chunk, error) {
	var out []model.Chunk
	for rows.Next() {
		var c model.Chunk
		if err := rows.Scan(&c.ID, &c.SourceID, &c.TenantID, &c.Content, &c.TokenCount, &c.Position, &c.Ctime); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
