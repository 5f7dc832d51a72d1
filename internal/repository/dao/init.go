package dao

import (
	"errors"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func InitTables(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Event{},
		&Registration{},
		&Template{},
		&CertificateRecord{},
		&CheckinRecord{},
	)
}

// isUniqueViolation recognizes duplicate-key errors from postgres and, for
// tests, from sqlite. constraint narrows the postgres match when non-empty.
func isUniqueViolation(err error, constraint string) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.UniqueViolation &&
			(constraint == "" || strings.Contains(pgErr.Message, constraint))
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
