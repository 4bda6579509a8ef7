package storage

import (
	"context"
	"database/sql"
	"errors"

	_ "github.com/lib/pq"
)

const createStateTable = `CREATE TABLE IF NOT EXISTS delivery_state (
	id         INT PRIMARY KEY,
	doc        JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// stateRowID is the single row holding the document.
const stateRowID = 1

// PostgresBackend stores the document as one JSONB row.
type PostgresBackend struct {
	db *sql.DB
}

func NewPostgresBackend(dsn string) (*PostgresBackend, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(createStateTable); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresBackend{db: db}, nil
}

func (p *PostgresBackend) Load(ctx context.Context) ([]byte, error) {
	var doc []byte
	err := p.db.QueryRowContext(ctx, `SELECT doc FROM delivery_state WHERE id = $1`, stateRowID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (p *PostgresBackend) Save(ctx context.Context, doc []byte) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO delivery_state(id, doc, updated_at) VALUES($1, $2, now())
		ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = EXCLUDED.updated_at`,
		stateRowID, string(doc))
	return err
}

func (p *PostgresBackend) Close() error {
	return p.db.Close()
}
