package storage

import (
	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	*sqlStore
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{sqlStore: &sqlStore{
		dsn:     path,
		dialect: dialect{driver: "sqlite", blobType: "BLOB"},
	}}
}
