package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"

	"storyboard/internal/domain"
)

func (s *Store) GetUnit(ctx context.Context, id string) (*domain.GenerationUnit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.units[id]
	if !ok {
		return nil, fmt.Errorf("unit %s: %w", id, domain.ErrNotFound)
	}
	return &u, nil
}

func (s *Store) FindUnit(ctx context.Context, parentID string, kind domain.UnitKind) (*domain.GenerationUnit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.findUnitLocked(parentID, kind); ok {
		return &u, nil
	}
	return nil, fmt.Errorf("%s unit for %s: %w", kind, parentID, domain.ErrNotFound)
}

func (s *Store) EnsureUnit(ctx context.Context, unit *domain.GenerationUnit) (*domain.GenerationUnit, error) {
	if unit == nil || unit.ParentID == "" || !unit.Kind.Valid() {
		return nil, fmt.Errorf("%w: unit parent and kind are required", domain.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.findUnitLocked(unit.ParentID, unit.Kind); ok {
		return &u, nil
	}
	u := *unit
	s.insertUnitsLocked([]domain.GenerationUnit{u})
	u, _ = s.findUnitLocked(unit.ParentID, unit.Kind)
	return &u, nil
}

func (s *Store) ListProjectUnits(ctx context.Context, projectID string) ([]domain.GenerationUnit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.GenerationUnit
	for _, u := range s.units {
		if u.ProjectID == projectID {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) Transition(ctx context.Context, t domain.Transition) (*domain.GenerationUnit, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.units[t.UnitID]
	if !ok {
		return nil, fmt.Errorf("unit %s: %w", t.UnitID, domain.ErrNotFound)
	}
	if !slices.Contains(t.From, u.Status) {
		return nil, fmt.Errorf("unit %s is %s, cannot move to %s: %w", u.ID, u.Status, t.To, domain.ErrIllegalTransition)
	}
	t.Apply(&u, s.now())
	s.units[u.ID] = u
	return &u, nil
}

func (s *Store) ExpireGenerating(ctx context.Context, now time.Time, reason string) ([]domain.GenerationUnit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expired []domain.GenerationUnit
	for id, u := range s.units {
		if u.Status != domain.UnitStatusGenerating || u.DeadlineAt == nil || !u.DeadlineAt.Before(now) {
			continue
		}
		domain.Transition{UnitID: id, To: domain.UnitStatusFailed, Failure: reason}.Apply(&u, s.now())
		s.units[id] = u
		expired = append(expired, u)
	}
	return expired, nil
}

func (s *Store) findUnitLocked(parentID string, kind domain.UnitKind) (domain.GenerationUnit, bool) {
	for _, u := range s.units {
		if u.ParentID == parentID && u.Kind == kind {
			return u, true
		}
	}
	return domain.GenerationUnit{}, false
}

// insertUnitsLocked stores units as pending, skipping any (parent, kind)
// pair that already exists.
func (s *Store) insertUnitsLocked(units []domain.GenerationUnit) {
	for _, u := range units {
		if _, exists := s.findUnitLocked(u.ParentID, u.Kind); exists {
			continue
		}
		if u.ID == "" {
			u.ID = uuid.NewString()
		}
		u.Status = domain.UnitStatusPending
		u.ArtifactRef, u.FailureReason = "", ""
		u.Attempts = 0
		u.DeadlineAt = nil
		now := s.tick()
		u.CreatedAt, u.UpdatedAt = now, now
		s.units[u.ID] = u
	}
}
