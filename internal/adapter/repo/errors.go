package repo

import (
	"fmt"

	"storyboard/internal/domain"
	"storyboard/internal/infra"
)

// wrap classifies database errors for callers: no-rows becomes ErrNotFound,
// everything else ErrPersistence.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if infra.IsNoRows(err) {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrPersistence, op, err)
}
