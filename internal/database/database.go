package database

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

type PgSessionRepository struct {
	conn *sql.DB
}

// NewPgSessionRepository opens and pings a Postgres connection pool.
func NewPgSessionRepository(dsn string) (*PgSessionRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &PgSessionRepository{conn: db}, nil
}

// DB exposes the pool for schema migrations.
func (db *PgSessionRepository) DB() *sql.DB {
	return db.conn
}

func (db *PgSessionRepository) Ping() error {
	return db.conn.Ping()
}

func (db *PgSessionRepository) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
