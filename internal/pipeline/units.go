package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"unicode/utf8"

	"storyboard/internal/domain"
	"storyboard/internal/feed"
)

// transition persists t and publishes the resulting state.
func (p *Pipeline) transition(ctx context.Context, t domain.Transition, fromCache bool) (*domain.GenerationUnit, error) {
	u, err := p.units.Transition(ctx, t)
	if err != nil {
		return nil, err
	}
	p.publish(ctx, *u, fromCache)
	return u, nil
}

func (p *Pipeline) publish(ctx context.Context, u domain.GenerationUnit, fromCache bool) {
	c := feed.FromUnit(u)
	c.FromCache = fromCache
	if err := p.publisher.Publish(context.WithoutCancel(ctx), c); err != nil {
		p.logger.Warn().Err(err).Str("unit_id", u.ID).Str("status", string(u.Status)).Msg("publish change failed")
	}
}

// claimable reports whether u may enter generating now.
func claimable(u *domain.GenerationUnit) bool {
	return slices.Contains(domain.SourcesFor(u.Kind, domain.UnitStatusGenerating), u.Status)
}

// notClaimable explains why u cannot enter generating. A unit another
// executor is generating reports ErrUnitBusy as well.
func notClaimable(u *domain.GenerationUnit) error {
	if u.Status == domain.UnitStatusGenerating {
		return fmt.Errorf("%s unit %s is generating: %w: %w", u.Kind, u.ID, domain.ErrUnitBusy, domain.ErrIllegalTransition)
	}
	return fmt.Errorf("%s unit %s is %s: %w", u.Kind, u.ID, u.Status, domain.ErrIllegalTransition)
}

// claim moves u into generating with a fresh deadline. Only one caller can
// win for a given source status; losers get ErrUnitBusy.
func (p *Pipeline) claim(ctx context.Context, u *domain.GenerationUnit, fingerprint string, fromCache bool) (*domain.GenerationUnit, error) {
	if !claimable(u) {
		return nil, notClaimable(u)
	}
	deadline := p.now().Add(p.cfg.GeneratingTimeout)
	claimed, err := p.transition(ctx, domain.Transition{
		UnitID:      u.ID,
		From:        []domain.UnitStatus{u.Status},
		To:          domain.UnitStatusGenerating,
		Fingerprint: fingerprint,
		Deadline:    &deadline,
	}, fromCache)
	if errors.Is(err, domain.ErrIllegalTransition) {
		return nil, fmt.Errorf("%w: %w", domain.ErrUnitBusy, err)
	}
	return claimed, err
}

func (p *Pipeline) complete(ctx context.Context, unitID, artifactRef string, fromCache bool) (*domain.GenerationUnit, error) {
	return p.transition(context.WithoutCancel(ctx), domain.Transition{
		UnitID:      unitID,
		From:        []domain.UnitStatus{domain.UnitStatusGenerating},
		To:          domain.UnitStatusCompleted,
		ArtifactRef: artifactRef,
	}, fromCache)
}

// fail records cause on the unit. It runs detached from ctx so a cancelled
// request still leaves the unit in a terminal state.
func (p *Pipeline) fail(ctx context.Context, unitID string, cause error) {
	reason := truncateReason(cause.Error(), maxFailureReason)
	if _, err := p.transition(context.WithoutCancel(ctx), domain.Transition{
		UnitID:  unitID,
		From:    []domain.UnitStatus{domain.UnitStatusGenerating},
		To:      domain.UnitStatusFailed,
		Failure: reason,
	}, false); err != nil {
		p.logger.Error().Err(err).Str("unit_id", unitID).Str("reason", reason).Msg("record unit failure failed")
	}
}

const maxFailureReason = 500

// truncateReason cuts s to at most max bytes without splitting a rune.
func truncateReason(s string, max int) string {
	if len(s) <= max {
		return s
	}
	n := max
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// markPromptReady advances a two-step unit once its prompt exists.
func (p *Pipeline) markPromptReady(ctx context.Context, u *domain.GenerationUnit) error {
	if u.Status != domain.UnitStatusPending {
		return nil
	}
	_, err := p.transition(ctx, domain.Transition{
		UnitID: u.ID,
		From:   []domain.UnitStatus{domain.UnitStatusPending},
		To:     domain.UnitStatusPromptReady,
	}, false)
	return err
}

// ensureProjectUnit returns the project-level unit of kind, creating it.
func (p *Pipeline) ensureProjectUnit(ctx context.Context, projectID string, kind domain.UnitKind) (*domain.GenerationUnit, error) {
	return p.units.EnsureUnit(ctx, &domain.GenerationUnit{
		ParentType: domain.ParentProject,
		ParentID:   projectID,
		ProjectID:  projectID,
		Kind:       kind,
	})
}
