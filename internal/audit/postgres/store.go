package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"presalepool/internal/model"
)

// Store provides Postgres persistence for audit events. The event stream
// is append-only and keyed by sequence number, so replays are idempotent.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// PutEvents upserts a batch of audit events.
func (s *Store) PutEvents(events []model.AuditEvent) error {
	return s.PutEventsCtx(context.Background(), events)
}

// PutEventsCtx upserts a batch of audit events with a caller context.
func (s *Store) PutEventsCtx(ctx context.Context, events []model.AuditEvent) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, event := range events {
		batch.Queue(`
			INSERT INTO audit_events (
				seq, kind, state, actor, group_index, token, amount, detail, event_ts, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
			ON CONFLICT (seq) DO NOTHING
		`,
			int64(event.Seq),
			event.Kind,
			event.State,
			event.Actor,
			event.Group,
			event.Token,
			event.Amount,
			event.Detail,
			event.Timestamp,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range events {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadEvents returns events from a sequence number onward, in order.
// The stream is enough to reconstruct the ledger from history alone.
func (s *Store) LoadEvents(ctx context.Context, fromSeq uint64) ([]model.AuditEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT seq, kind, state, actor, group_index, token, amount, detail, event_ts
		FROM audit_events
		WHERE seq >= $1
		ORDER BY seq
	`, int64(fromSeq))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.AuditEvent
	for rows.Next() {
		var event model.AuditEvent
		var seq int64
		if err := rows.Scan(&seq, &event.Kind, &event.State, &event.Actor,
			&event.Group, &event.Token, &event.Amount, &event.Detail, &event.Timestamp); err != nil {
			return nil, err
		}
		event.Seq = uint64(seq)
		events = append(events, event)
	}
	return events, rows.Err()
}

// LastSeq returns the highest stored sequence number.
func (s *Store) LastSeq(ctx context.Context) (uint64, bool, error) {
	var seq *int64
	row := s.pool.QueryRow(ctx, `SELECT max(seq) FROM audit_events`)
	if err := row.Scan(&seq); err != nil {
		return 0, false, err
	}
	if seq == nil {
		return 0, false, nil
	}
	return uint64(*seq), true, nil
}
