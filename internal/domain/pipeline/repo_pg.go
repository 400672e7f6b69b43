package pipeline

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

const statusCols = `file_hash, series_hash, appointment_id, status, created_at, updated_at`

func (r *repoPG) scanRow(row pgx.Row) (*SeriesStatus, error) {
	var s SeriesStatus
	err := row.Scan(&s.FileHash, &s.SeriesHash, &s.AppointmentID, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &s, err
}

func (r *repoPG) Create(ctx context.Context, s *SeriesStatus) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO series_status (file_hash, series_hash, appointment_id, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (file_hash, series_hash) DO NOTHING`,
		s.FileHash, s.SeriesHash, s.AppointmentID, s.Status)
	return err
}

func (r *repoPG) Get(ctx context.Context, fileHash, seriesHash hashid.ID) (*SeriesStatus, error) {
	return r.scanRow(r.conn(ctx).QueryRow(ctx,
		`SELECT `+statusCols+` FROM series_status WHERE file_hash = $1 AND series_hash = $2`,
		fileHash, seriesHash))
}

func (r *repoPG) ListByFile(ctx context.Context, fileHash hashid.ID) ([]*SeriesStatus, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+statusCols+` FROM series_status WHERE file_hash = $1 ORDER BY series_hash`, fileHash)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*SeriesStatus
	for rows.Next() {
		s, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

func (r *repoPG) Transition(ctx context.Context, fileHash, seriesHash hashid.ID, next Status) (*SeriesStatus, bool, error) {
	var (
		out     *SeriesStatus
		applied bool
	)
	err := db.InTx(ctx, r.pool, func(ctx context.Context) error {
		q := r.conn(ctx)
		cur, err := r.scanRow(q.QueryRow(ctx,
			`SELECT `+statusCols+` FROM series_status WHERE file_hash = $1 AND series_hash = $2 FOR UPDATE`,
			fileHash, seriesHash))
		if err != nil {
			return err
		}
		if !CanTransition(cur.Status, next) {
			out = cur
			return nil
		}
		out, err = r.scanRow(q.QueryRow(ctx, `
			UPDATE series_status SET status = $3, updated_at = NOW()
			WHERE file_hash = $1 AND series_hash = $2
			RETURNING `+statusCols, fileHash, seriesHash, next))
		if err != nil {
			return fmt.Errorf("update series status: %w", err)
		}
		applied = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, applied, nil
}
