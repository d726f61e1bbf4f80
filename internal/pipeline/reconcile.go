package pipeline

import (
	"context"
	"time"

	"storyboard/internal/domain"
)

// Reconcile fails every generating unit whose deadline has passed. Failed
// units can be retried.
func (p *Pipeline) Reconcile(ctx context.Context) (int, error) {
	expired, err := p.units.ExpireGenerating(ctx, p.now(), domain.FailureReasonTimeout)
	if err != nil {
		return 0, err
	}
	for _, u := range expired {
		p.logger.Warn().Str("unit_id", u.ID).Str("kind", string(u.Kind)).Msg("generation timed out")
		p.publish(ctx, u, false)
	}
	return len(expired), nil
}

// RunReconciler sweeps every interval until ctx is done.
func (p *Pipeline) RunReconciler(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.Reconcile(ctx); err != nil {
				p.logger.Error().Err(err).Msg("reconcile sweep failed")
			}
		}
	}
}
