package storage

import (
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

type PostgresStore struct {
	*sqlStore
}

// NewPostgresStore connects through pgx, e.g.
// postgres://localhost/psmfeats?sslmode=disable.
func NewPostgresStore(dsn string) *PostgresStore {
	return &PostgresStore{sqlStore: &sqlStore{
		dsn:     dsn,
		dialect: dialect{driver: "pgx", blobType: "BYTEA", dollarBinds: true},
	}}
}
