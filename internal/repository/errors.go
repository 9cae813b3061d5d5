// Package repository holds the PostgreSQL implementations of the store
// interfaces in package service.
package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// nullable stores an empty string as SQL NULL.
func nullable(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}
