package pipeline

import (
	"context"
	"fmt"

	"storyboard/internal/domain"
)

// RenderResult is the outcome of a paid render.
type RenderResult struct {
	UnitID    string `json:"unit_id"`
	URL       string `json:"url"`
	FromCache bool   `json:"from_cache"`
}

type render struct {
	unit        *domain.GenerationUnit
	userID      string
	fingerprint string
	ext         string
	metadata    map[string]any
	produce     func(ctx context.Context) (data []byte, contentType string, err error)
}

// runPaid executes the cache, debit, claim, provider, store sequence shared
// by every paid kind.
func (p *Pipeline) runPaid(ctx context.Context, r render) (*RenderResult, error) {
	u := r.unit
	log := p.logger.With().Str("unit_id", u.ID).Str("kind", string(u.Kind)).Logger()
	if !claimable(u) {
		return nil, notClaimable(u)
	}

	key := p.cache.Key(u.ProjectID, u.SceneID, u.ID, r.fingerprint, r.ext)
	if url, hit, err := p.cache.Lookup(ctx, key); err != nil {
		return nil, err
	} else if hit {
		claimed, err := p.claim(ctx, u, r.fingerprint, true)
		if err != nil {
			return nil, err
		}
		if _, err := p.complete(ctx, claimed.ID, url, true); err != nil {
			return nil, err
		}
		log.Info().Str("url", url).Msg("served from cache")
		return &RenderResult{UnitID: u.ID, URL: url, FromCache: true}, nil
	}

	cost := p.cfg.Cost(string(u.Kind))
	resource := u.Kind.ResourceType()
	meta := map[string]any{"unit_id": u.ID, "kind": string(u.Kind), "project_id": u.ProjectID}
	for k, v := range r.metadata {
		meta[k] = v
	}
	granted, err := p.ledger.TryDebit(ctx, r.userID, resource, cost, meta)
	if err != nil {
		return nil, err
	}
	if !granted {
		return nil, fmt.Errorf("%w: %d %s credits required", domain.ErrAdmissionDenied, cost, resource)
	}

	claimed, err := p.claim(ctx, u, r.fingerprint, false)
	if err != nil {
		meta["reason"] = "claim_conflict"
		if rerr := p.ledger.Refund(context.WithoutCancel(ctx), r.userID, resource, cost, meta); rerr != nil {
			log.Error().Err(rerr).Int("cost", cost).Msg("refund after claim conflict failed")
		}
		return nil, err
	}

	if err := p.pace(ctx); err != nil {
		p.fail(ctx, claimed.ID, err)
		return nil, err
	}
	data, contentType, err := r.produce(ctx)
	if err != nil {
		p.fail(ctx, claimed.ID, err)
		log.Warn().Err(err).Msg("provider call failed")
		return nil, upstream(err)
	}
	url, err := p.cache.Store(ctx, key, data, contentType)
	if err != nil {
		p.fail(ctx, claimed.ID, err)
		return nil, persistence(err)
	}
	if _, err := p.complete(ctx, claimed.ID, url, false); err != nil {
		return nil, err
	}
	log.Info().Str("url", url).Int("bytes", len(data)).Msg("render completed")
	return &RenderResult{UnitID: u.ID, URL: url}, nil
}
