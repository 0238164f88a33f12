// Package repository implements domain storage interfaces using SQLite.
package repository

import (
	"errors"

	"github.com/mattn/go-sqlite3"

	"lake-loader/internal/domain"
)

// isConstraintViolation reports whether err is a primary key or unique index
// violation.
func isConstraintViolation(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey || se.ExtendedCode == sqlite3.ErrConstraintUnique
}

func partitionsOrEmpty(p []domain.Partition) []domain.Partition {
	if p == nil {
		return []domain.Partition{}
	}
	return p
}
