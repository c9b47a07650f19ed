package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"
	"github.com/lib/pq"

	"github.com/clausea/clausea/internal/model"
	"github.com/clausea/clausea/internal/pkg/dbutil"
	appErr "github.com/clausea/clausea/internal/pkg/errors"
)

var sourceFields = []string{"id", "tenant_id", "title", "type", "status", "ctime", "mtime"}

type SourceRepo struct {
	db *sql.DB
}

func NewSourceRepo(db *sql.DB) *SourceRepo {
	return &SourceRepo{db: db}
}

func (r *SourceRepo) Create(ctx context.Context, src *model.Source) error {
	data := map[string]interface{}{
		"id":        src.ID,
		"tenant_id": src.TenantID,
		"title":     src.Title,
		"type":      src.Type,
		"status":    string(src.Status),
		"ctime":     src.Ctime,
		"mtime":     src.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("sources", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *SourceRepo) Get(ctx context.Context, tenantID, id string) (*model.Source, error) {
	where := map[string]interface{}{"id": id, "tenant_id": tenantID}
	sqlStr, args, err := builder.BuildSelect("sources", where, sourceFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	row := r.db.QueryRowContext(ctx, sqlStr, args...)
	src, err := scanSource(row)
	if err == sql.ErrNoRows {
		return nil, appErr.ErrNotFound
	}
	return src, err
}

func (r *SourceRepo) ListByTenant(ctx context.Context, tenantID string) ([]model.Source, error) {
	where := map[string]interface{}{
		"tenant_id": tenantID,
		"_orderby":  "ctime desc",
	}
	sqlStr, args, err := builder.BuildSelect("sources", where, sourceFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *src)
	}
	return out, rows.Err()
}

// GetTitles resolves source ids to titles for citation labelling.
func (r *SourceRepo) GetTitles(ctx context.Context, ids []string) (map[string]string, error) {
	titles := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return titles, nil
	}
	const query = `SELECT id, title FROM sources WHERE id = ANY($1)`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id, title string
		if err := rows.Scan(&id, &title); err != nil {
			return nil, err
		}
		titles[id] = title
	}
	return titles, rows.Err()
}

func (r *SourceRepo) UpdateStatus(ctx context.Context, tenantID, id string, status model.SourceStatus, mtime int64) error {
	where := map[string]interface{}{"id": id, "tenant_id": tenantID}
	update := map[string]interface{}{"status": string(status), "mtime": mtime}
	sqlStr, args, err := builder.BuildUpdate("sources", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func (r *SourceRepo) Delete(ctx context.Context, tenantID, id string) error {
	where := map[string]interface{}{"id": id, "tenant_id": tenantID}
	sqlStr, args, err := builder.BuildDelete("sources", where)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

// ListStuckProcessing returns sources that entered processing before the
// cutoff and never reached a terminal status, for the backfill job.
func (r *SourceRepo) ListStuckProcessing(ctx context.Context, cutoff int64, limit int) ([]model.Source, error) {
	const query = `
		SELECT id, tenant_id, title, type, status, ctime, mtime
		FROM sources
		WHERE status = $1 AND mtime < $2
		ORDER BY mtime ASC
		LIMIT $3
	`
	rows, err := r.db.QueryContext(ctx, query, string(model.SourceStatusProcessing), cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *src)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSource(row rowScanner) (*model.Source, error) {
	var src model.Source
	var status string
	if err := row.Scan(&src.ID, &src.TenantID, &src.Title, &src.Type, &status, &src.Ctime, &src.Mtime); err != nil {
		return nil, err
	}
	src.Status = model.SourceStatus(status)
	return &src, nil
}
