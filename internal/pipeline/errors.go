package pipeline

import (
	"context"
	"errors"
	"fmt"

	"storyboard/internal/domain"
)

// upstream classifies a provider failure unless it already carries a kind.
func upstream(err error) error {
	if err == nil || classified(err) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrUpstreamProvider, err)
}

func persistence(err error) error {
	if err == nil || classified(err) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
}

func classified(err error) bool {
	for _, kind := range []error{
		domain.ErrUpstreamProvider, domain.ErrPersistence, domain.ErrValidation,
		domain.ErrNotFound, domain.ErrAdmissionDenied, domain.ErrIllegalTransition,
		domain.ErrForbidden, context.Canceled, context.DeadlineExceeded,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
