package service

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrNoDoc            = errors.New("no document")
	ErrChecksFailed     = errors.New("checks failed")
	ErrSmokeFailed      = errors.New("one or more dataset smoke tests failed")
	ErrQueriesFailed    = errors.New("queries failed")
	ErrQueryNotFound    = errors.New("query not found")
	ErrValidationFailed = errors.New("schema validation failed")
)

// MissingCollectionsError is returned when a book requires collections the database lacks.
type MissingCollectionsError struct {
	Database string
	Missing  []string
}

func (e *MissingCollectionsError) Error() string {
	return fmt.Sprintf("database %s is missing required collections: %s",
		e.Database, strings.Join(e.Missing, ", "))
}

// IsMissingCollections reports whether err is, or wraps, a *MissingCollectionsError.
func IsMissingCollections(err error) (*MissingCollectionsError, bool) {
	var target *MissingCollectionsError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}
