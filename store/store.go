// Package store keeps forms, responses and admin users in SQLite3.
package store

import (
	"database/sql"

	"github.com/goccy/go-json"
	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrSlugTaken  = errors.New("slug already in use")
	ErrEmailTaken = errors.New("email already registered")
)

type scanner interface {
	Scan(dest ...any) error
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeJSON(s string, v any) error {
	if s == "" {
		return nil
	}
	return json.Unmarshal([]byte(s), v)
}
