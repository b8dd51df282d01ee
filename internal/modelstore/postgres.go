package modelstore

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"gocause/internal/errors"
)

// PostgresStore keeps model blobs in a Postgres table.
type PostgresStore struct {
	db *sqlx.DB
}

const createModelsTable = `CREATE TABLE IF NOT EXISTS causal_models (
	name       TEXT PRIMARY KEY,
	blob       BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// NewPostgresStore connects and ensures the schema exists.
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to postgres")
	}
	if _, err := db.Exec(createModelsTable); err != nil {
		return nil, errors.Wrap(err, "failed to ensure causal_models table")
	}
	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreWithDB wraps an existing connection, used by tests.
func NewPostgresStoreWithDB(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (ps *PostgresStore) Save(ctx context.Context, name string, blob []byte) error {
	if err := checkName(name); err != nil {
		return err
	}
	query := `INSERT INTO causal_models (name, blob, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE SET blob = EXCLUDED.blob, updated_at = now()`
	if _, err := ps.db.ExecContext(ctx, query, name, blob); err != nil {
		return errors.Wrapf(err, "failed to save model %s", name)
	}
	return nil
}

func (ps *PostgresStore) Load(ctx context.Context, name string) ([]byte, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	var blob []byte
	err := ps.db.QueryRowContext(ctx, `SELECT blob FROM causal_models WHERE name = $1`, name).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("model " + name)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load model %s", name)
	}
	return blob, nil
}

func (ps *PostgresStore) Delete(ctx context.Context, name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	res, err := ps.db.ExecContext(ctx, `DELETE FROM causal_models WHERE name = $1`, name)
	if err != nil {
		return errors.Wrapf(err, "failed to delete model %s", name)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.NotFound("model " + name)
	}
	return nil
}

func (ps *PostgresStore) List(ctx context.Context) ([]ModelInfo, error) {
	rows, err := ps.db.QueryxContext(ctx, `SELECT name, octet_length(blob) AS size, updated_at FROM causal_models ORDER BY name`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list models")
	}
	defer rows.Close()

	var infos []ModelInfo
	for rows.Next() {
		var info ModelInfo
		if err := rows.Scan(&info.Name, &info.Size, &info.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan model row")
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}
