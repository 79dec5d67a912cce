package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	// ErrNotFound means a referenced post, comment or user does not exist (or is not visible).
	ErrNotFound = errors.New("not found")
	// ErrForbidden means the caller is neither the owner nor an admin.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidInput means a filter, sort key or payload field was rejected.
	ErrInvalidInput = errors.New("invalid input")
)

func invalidf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// notFound translates gorm's missing-row error into ErrNotFound.
func notFound(err error, what string, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %d: %w", what, id, ErrNotFound)
	}
	return fmt.Errorf("load %s %d: %w", what, id, err)
}
