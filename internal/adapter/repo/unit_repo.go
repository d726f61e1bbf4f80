package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"storyboard/internal/domain"
	"storyboard/internal/infra"
	"storyboard/internal/sqlinline"
)

// UnitRepositoryPG implements domain.UnitRepository on PostgreSQL.
type UnitRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewUnitRepository creates a unit repository.
func NewUnitRepository(sql infra.SQLExecutor) *UnitRepositoryPG {
	return &UnitRepositoryPG{sql: sql}
}

func (r *UnitRepositoryPG) GetUnit(ctx context.Context, id string) (*domain.GenerationUnit, error) {
	u, err := scanUnit(r.sql.QueryRow(ctx, sqlinline.QSelectUnit, id))
	if err != nil {
		return nil, wrap("get unit", err)
	}
	return u, nil
}

func (r *UnitRepositoryPG) FindUnit(ctx context.Context, parentID string, kind domain.UnitKind) (*domain.GenerationUnit, error) {
	u, err := scanUnit(r.sql.QueryRow(ctx, sqlinline.QSelectUnitByParent, parentID, string(kind)))
	if err != nil {
		return nil, wrap("find unit", err)
	}
	return u, nil
}

// EnsureUnit returns the unit for (ParentID, Kind), inserting it as pending
// when absent.
func (r *UnitRepositoryPG) EnsureUnit(ctx context.Context, unit *domain.GenerationUnit) (*domain.GenerationUnit, error) {
	if unit == nil || unit.ParentID == "" || !unit.Kind.Valid() {
		return nil, fmt.Errorf("%w: unit parent and kind are required", domain.ErrValidation)
	}
	id := unit.ID
	if id == "" {
		id = uuid.NewString()
	}
	u, err := scanUnit(r.sql.QueryRow(ctx, sqlinline.QEnsureUnit,
		id,
		string(unit.ParentType),
		unit.ParentID,
		unit.ProjectID,
		unit.SceneID,
		string(unit.Kind),
	))
	if err != nil {
		return nil, wrap("ensure unit", err)
	}
	return u, nil
}

func (r *UnitRepositoryPG) ListProjectUnits(ctx context.Context, projectID string) ([]domain.GenerationUnit, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QSelectProjectUnits, projectID)
	if err != nil {
		return nil, wrap("list units", err)
	}
	return collectUnits(rows, "list units")
}

// Transition applies a compare-and-set status change. When no row matches it
// reports ErrNotFound or ErrIllegalTransition depending on whether the unit
// exists.
func (r *UnitRepositoryPG) Transition(ctx context.Context, t domain.Transition) (*domain.GenerationUnit, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	from := make([]string, len(t.From))
	for i, s := range t.From {
		from[i] = string(s)
	}
	u, err := scanUnit(r.sql.QueryRow(ctx, sqlinline.QTransitionUnit,
		t.UnitID,
		string(t.To),
		t.ArtifactRef,
		t.Failure,
		t.Fingerprint,
		t.Deadline,
		from,
	))
	if err == nil {
		return u, nil
	}
	if !infra.IsNoRows(err) {
		return nil, wrap("transition unit", err)
	}
	current, getErr := r.GetUnit(ctx, t.UnitID)
	if getErr != nil {
		return nil, getErr
	}
	return nil, fmt.Errorf("%w: unit %s is %s, cannot move to %s", domain.ErrIllegalTransition, current.ID, current.Status, t.To)
}

func (r *UnitRepositoryPG) ExpireGenerating(ctx context.Context, now time.Time, reason string) ([]domain.GenerationUnit, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QExpireGeneratingUnits, now, reason)
	if err != nil {
		return nil, wrap("expire units", err)
	}
	return collectUnits(rows, "expire units")
}

func collectUnits(rows pgx.Rows, op string) ([]domain.GenerationUnit, error) {
	defer rows.Close()
	var out []domain.GenerationUnit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, wrap(op, err)
		}
		out = append(out, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(op, err)
	}
	return out, nil
}

func scanUnit(row pgx.Row) (*domain.GenerationUnit, error) {
	var (
		u          domain.GenerationUnit
		parentType string
		kind       string
		status     string
		deadline   *time.Time
	)
	if err := row.Scan(
		&u.ID,
		&parentType,
		&u.ParentID,
		&u.ProjectID,
		&u.SceneID,
		&kind,
		&status,
		&u.ArtifactRef,
		&u.FailureReason,
		&u.ContentFingerprint,
		&u.Attempts,
		&deadline,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	u.ParentType = domain.ParentType(parentType)
	u.Kind = domain.UnitKind(kind)
	u.Status = domain.UnitStatus(status)
	u.DeadlineAt = deadline
	return &u, nil
}

var _ domain.UnitRepository = (*UnitRepositoryPG)(nil)
