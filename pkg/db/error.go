package db

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// Messages emitted on unique-index violations by the dialects we run on:
// postgres (23505) and the sqlite build used in tests (2067).
var duplicateKeyMarkers = []string{
	"duplicate key value violates unique constraint",
	"UNIQUE constraint failed",
}

func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	for _, marker := range duplicateKeyMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
