package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps items as JSONB rows of the documents table (see
// persistence/migrations). Conditional writes rely on the table's primary
// key and its partial unique index on (collection, unique_attr, unique_value).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an established pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Scan(ctx context.Context, table string, filter Filter) ([]Item, error) {
	const query = `
        SELECT body FROM documents
        WHERE collection=$1 AND body @> $2::jsonb
        ORDER BY created_at, key`

	cond, err := json.Marshal(filter)
	if err != nil {
		return nil, err
	}
	if len(filter) == 0 {
		cond = []byte("{}")
	}

	rows, err := s.pool.Query(ctx, query, table, string(cond))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]Item, 0)
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		item, err := decodeItem(body)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, rows.Err()
}

func (s *PostgresStore) Get(ctx context.Context, table, key string) (Item, error) {
	const query = `SELECT body FROM documents WHERE collection=$1 AND key=$2`

	var body []byte
	if err := s.pool.QueryRow(ctx, query, table, key).Scan(&body); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return decodeItem(body)
}

func (s *PostgresStore) PutIfAbsent(ctx context.Context, table string, item Item, uniqueAttr string) error {
	const query = `
        INSERT INTO documents (collection, key, unique_attr, unique_value, body)
        VALUES ($1, $2, $3, $4, $5::jsonb)
        ON CONFLICT DO NOTHING`

	key, err := item.Key()
	if err != nil {
		return err
	}
	body, err := json.Marshal(item)
	if err != nil {
		return err
	}

	var attr, value *string
	if v, ok := uniqueValue(item, uniqueAttr); ok {
		attr, value = &uniqueAttr, &v
	}

	cmd, err := s.pool.Exec(ctx, query, table, key, attr, value, string(body))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrConditionFailed
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, table, key string, fields Item) (Item, error) {
	const query = `
        UPDATE documents SET body = body || $3::jsonb, updated_at=NOW()
        WHERE collection=$1 AND key=$2
        RETURNING body`

	if err := checkUpdateFields(fields); err != nil {
		return nil, err
	}
	patch, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}

	var body []byte
	if err := s.pool.QueryRow(ctx, query, table, key, string(patch)).Scan(&body); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return decodeItem(body)
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if s.pool == nil {
		return errors.New("postgres pool not configured")
	}
	return s.pool.Ping(ctx)
}

func decodeItem(body []byte) (Item, error) {
	var item Item
	if err := json.Unmarshal(body, &item); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return item, nil
}
