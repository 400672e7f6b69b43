package appointment

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Aorta-Detectors/Aorta-Detection/internal/platform/db"
	"github.com/Aorta-Detectors/Aorta-Detection/internal/platform/hashid"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const fileCols = `appointment_id, file_hash, created_at, updated_at`

func (r *repoPG) scanRow(row pgx.Row) (*File, error) {
	var f File
	err := row.Scan(&f.AppointmentID, &f.FileHash, &f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &f, err
}

func (r *repoPG) Ensure(ctx context.Context, id int64) error {
	_, err := r.conn(ctx).Exec(ctx,
		`INSERT INTO appointments (appointment_id) VALUES ($1) ON CONFLICT DO NOTHING`, id)
	return err
}

func (r *repoPG) Exists(ctx context.Context, id int64) (bool, error) {
	var ok bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM appointments WHERE appointment_id = $1)`, id).Scan(&ok)
	return ok, err
}

func (r *repoPG) UpsertFile(ctx context.Context, id int64, fileHash hashid.ID) (*File, error) {
	var out *File
	err := db.InTx(ctx, r.pool, func(ctx context.Context) error {
		q := r.conn(ctx)

		var previous hashid.ID
		err := q.QueryRow(ctx,
			`SELECT file_hash FROM appointment_files WHERE appointment_id = $1 FOR UPDATE`, id).Scan(&previous)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("lock appointment file: %w", err)
		}

		f, err := r.scanRow(q.QueryRow(ctx, `
			INSERT INTO appointment_files (appointment_id, file_hash)
			VALUES ($1, $2)
			ON CONFLICT (appointment_id) DO UPDATE
				SET file_hash = EXCLUDED.file_hash, updated_at = NOW()
			RETURNING `+fileCols, id, fileHash))
		if err != nil {
			return fmt.Errorf("upsert appointment file: %w", err)
		}

		if previous != fileHash {
			if _, err := q.Exec(ctx,
				`UPDATE appointments SET is_ready = FALSE WHERE appointment_id = $1`, id); err != nil {
				return fmt.Errorf("reset readiness: %w", err)
			}
		}
		out = f
		return nil
	})
	return out, err
}

func (r *repoPG) GetFile(ctx context.Context, id int64) (*File, error) {
	return r.scanRow(r.conn(ctx).QueryRow(ctx,
		`SELECT `+fileCols+` FROM appointment_files WHERE appointment_id = $1`, id))
}

func (r *repoPG) ListByFileHash(ctx context.Context, fileHash hashid.ID) ([]*File, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+fileCols+` FROM appointment_files WHERE file_hash = $1 ORDER BY appointment_id`, fileHash)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*File
	for rows.Next() {
		f, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, f)
	}
	return items, rows.Err()
}

func (r *repoPG) MarkReady(ctx context.Context, fileHash hashid.ID) ([]int64, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		UPDATE appointments a SET is_ready = TRUE
		FROM appointment_files f
		WHERE f.appointment_id = a.appointment_id
			AND f.file_hash = $1
			AND a.is_ready IS NOT TRUE
		RETURNING a.appointment_id`, fileHash)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *repoPG) IsReady(ctx context.Context, id int64) (bool, error) {
	var ready bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT is_ready FROM appointments WHERE appointment_id = $1`, id).Scan(&ready)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, ErrNotFound
	}
	return ready, err
}
