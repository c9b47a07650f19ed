package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/clausea/clausea/internal/model"
	"github.com/clausea/clausea/internal/pkg/dbutil"
)

type QueryRepo struct {
	db *sql.DB
}

func NewQueryRepo(db *sql.DB) *QueryRepo {
	return &QueryRepo{db: db}
}

func (r *QueryRepo) InsertQuery(ctx context.Context, q *model.Query) error {
	data := map[string]interface{}{
		"id":        q.ID,
		"tenant_id": q.TenantID,
		"user_id":   q.UserID,
		"question":  q.Question,
		"answer":    q.Answer,
		"ctime":     q.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert("queries", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *QueryRepo) InsertCitations(ctx context.Context, citations []*model.Citation) error {
	if len(citations) == 0 {
		return nil
	}
	data := make([]map[string]interface{}, 0, len(citations))
	for _, c := range citations {
		data = append(data, map[string]interface{}{
			"id":           c.ID,
			"query_id":     c.QueryID,
			"tenant_id":    c.TenantID,
			"chunk_id":     c.ChunkID,
			"source_id":    c.SourceID,
			"source_title": c.SourceTitle,
			"snippet":      c.Snippet,
			"score":        c.Score,
			"external":     c.External,
			"url":          c.URL,
			"ctime":        c.Ctime,
		})
	}
	sqlStr, args, err := builder.BuildInsert("citations", data)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *QueryRepo) ListByTenant(ctx context.Context, tenantID string, limit int) ([]model.Query, error) {
	if limit <= 0 {
		limit = 50
	}
	where := map[string]interface{}{
		"tenant_id": tenantID,
		"_orderby":  "ctime desc",
		"_limit":    []uint{0, uint(limit)},
	}
	sqlStr, args, err := builder.BuildSelect("queries", where, []string{"id", "tenant_id", "user_id", "question", "answer", "ctime"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Query
	for rows.Next() {
		var q model.Query
		if err := rows.Scan(&q.ID, &q.TenantID, &q.UserID, &q.Question, &q.Answer, &q.Ctime); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (r *QueryRepo) ListCitations(ctx context.Context, tenantID, queryID string) ([]model.Citation, error) {
	where := map[string]interface{}{
		"tenant_id": tenantID,
		"query_id":  queryID,
		"_orderby":  "score desc",
	}
	fields := []string{"id", "query_id", "tenant_id", "chunk_id", "source_id", "source_title", "snippet", "score", "external", "url", "ctime"}
	sqlStr, args, err := builder.BuildSelect("citations", where, fields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Citation
	for rows.Next() {
		var c model.Citation
		var chunkID, sourceID, url sql.NullString
		if err := rows.Scan(&c.ID, &c.QueryID, &c.TenantID, &chunkID, &sourceID, &c.SourceTitle, &c.Snippet, &c.Score, &c.External, &url, &c.Ctime); err != nil {
			return nil, err
		}
		c.ChunkID = chunkID.String
		c.SourceID = sourceID.String
		c.URL = url.String
		out = append(out, c)
	}
	return out, rows.Err()
}
