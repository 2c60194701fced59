package pgshipments

import (
	"context"
	"log/slog"
	"time"

	"github.com/BearBump/GTLTrack/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

const changedChannel = "shipments_changed"

func (s *Storage) Get(ctx context.Context, lr string) (*models.ShipmentRecord, bool, error) {
	var rec models.ShipmentRecord
	err := s.db.QueryRow(ctx, `
SELECT lr, status, route, date
FROM shipments
WHERE lr = $1
`, lr).Scan(&rec.LR, &rec.Status, &rec.Route, &rec.Date)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "select shipment")
	}
	return &rec, true, nil
}

// Put upserts the record and notifies listeners in the same transaction, so a listener
// never sees the notification before the row is visible.
func (s *Storage) Put(ctx context.Context, rec models.ShipmentRecord) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
INSERT INTO shipments (lr, status, route, date, updated_at)
VALUES ($1,$2,$3,$4, now())
ON CONFLICT (lr)
DO UPDATE SET
  status = EXCLUDED.status,
  route = EXCLUDED.route,
  date = EXCLUDED.date,
  updated_at = now()
`, rec.LR, rec.Status, rec.Route, rec.Date)
	if err != nil {
		return errors.Wrap(err, "upsert shipment")
	}
	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, changedChannel, rec.LR); err != nil {
		return errors.Wrap(err, "notify shipment")
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}

func (s *Storage) Remove(ctx context.Context, lr string) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM shipments WHERE lr = $1`, lr); err != nil {
		return errors.Wrap(err, "delete shipment")
	}
	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, changedChannel, lr); err != nil {
		return errors.Wrap(err, "notify shipment")
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}

func (s *Storage) All(ctx context.Context) (map[string]models.ShipmentRecord, error) {
	rows, err := s.db.Query(ctx, `
SELECT lr, status, route, date
FROM shipments
ORDER BY lr
`)
	if err != nil {
		return nil, errors.Wrap(err, "select shipments")
	}
	defer rows.Close()

	out := make(map[string]models.ShipmentRecord)
	for rows.Next() {
		var rec models.ShipmentRecord
		if err := rows.Scan(&rec.LR, &rec.Status, &rec.Route, &rec.Date); err != nil {
			return nil, errors.Wrap(err, "scan shipment")
		}
		out[rec.LR] = rec
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// Watch holds one pooled connection in LISTEN mode until ctx is done. A dropped connection
// is re-acquired after relistenDelay; once listening again Watch emits "" so the caller
// reloads whatever changed in between.
func (s *Storage) Watch(ctx context.Context) (<-chan string, error) {
	conn, err := s.listen(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan string, 1)
	go func() {
		defer close(out)
		for {
			err := relay(ctx, conn, out)
			if ctx.Err() != nil {
				return
			}
			slog.Error("shipment listener dropped, reconnecting", "error", err.Error())

			conn = nil
			for conn == nil {
				select {
				case <-ctx.Done():
					return
				case <-time.After(s.relistenDelay):
				}
				if conn, err = s.listen(ctx); err != nil && ctx.Err() == nil {
					slog.Warn("relisten shipments", "error", err.Error())
				}
			}
			offer(out, "")
		}
	}()
	return out, nil
}

func (s *Storage) listen(ctx context.Context) (*pgxpool.Conn, error) {
	conn, err := s.db.Acquire(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "acquire listen conn")
	}
	if _, err := conn.Exec(ctx, "LISTEN "+changedChannel); err != nil {
		conn.Release()
		return nil, errors.Wrap(err, "listen")
	}
	return conn, nil
}

// relay forwards notifications until the connection fails or ctx is done, then gives the
// connection back to the pool.
func relay(ctx context.Context, conn *pgxpool.Conn, out chan string) error {
	defer func() {
		if !conn.Conn().IsClosed() {
			_, _ = conn.Exec(context.Background(), "UNLISTEN *")
		}
		conn.Release()
	}()
	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		offer(out, n.Payload)
	}
}

// offer never blocks: a pending value already tells the reader to reload.
func offer(out chan string, lr string) {
	select {
	case out <- lr:
	default:
	}
}
