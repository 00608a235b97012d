package store

import (
	"context"

	"github.com/example/badgerwatch/internal/db"
	"github.com/jackc/pgx/v5"
)

// stateLockKey serializes writers across processes sharing one database.
const stateLockKey = 0x6261646772

// PostgresBackend keeps the document in the single-row badgerwatch_state table.
type PostgresBackend struct{ db *db.DB }

func NewPostgresBackend(d *db.DB) *PostgresBackend { return &PostgresBackend{db: d} }

func (b *PostgresBackend) Read(ctx context.Context) ([]byte, error) {
	var doc []byte
	err := b.db.QueryRow(ctx, `SELECT document FROM badgerwatch_state WHERE id=1`).Scan(&doc)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, ErrNoRecord
		}
		return nil, db.WrapNotFound(err)
	}
	return doc, nil
}

func (b *PostgresBackend) Write(ctx context.Context, data []byte) error {
	return b.db.InTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(stateLockKey)); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
INSERT INTO badgerwatch_state(id, document, updated_at)
VALUES (1, $1::jsonb, now())
ON CONFLICT (id) DO UPDATE SET document=EXCLUDED.document, updated_at=now()`, string(data))
		return err
	})
}
