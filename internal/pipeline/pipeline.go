// Package pipeline runs the storyboard generation stages: storyline, scene
// breakdown, shot prompts, and the paid image and audio renders.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"storyboard/internal/cache"
	"storyboard/internal/credits"
	"storyboard/internal/domain"
	"storyboard/internal/feed"
	"storyboard/internal/infra"
	"storyboard/internal/providers/genai"
	"storyboard/internal/providers/voice"
	"storyboard/internal/writer"
)

// ImageGenerator renders frames and portraits.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req genai.ImageRequest) (*genai.ImageAsset, error)
	ImageModel() string
}

// VoiceSynthesizer renders narration audio.
type VoiceSynthesizer interface {
	Synthesize(ctx context.Context, req voice.Request) ([]byte, error)
	DefaultModel() string
	ContentType() string
}

// JobQueue schedules background renders.
type JobQueue interface {
	EnqueueUnique(ctx context.Context, taskType, key string, payload any, priority int) (*domain.Job, bool, error)
}

// Deps are the collaborators of a Pipeline. Limiter, Publisher and Now are
// optional.
type Deps struct {
	Projects       domain.ProjectRepository
	Units          domain.UnitRepository
	Ledger         *credits.Ledger
	Cache          *cache.Cache
	Writer         writer.Writer
	Images         ImageGenerator
	Voice          VoiceSynthesizer
	Queue          JobQueue
	Publisher      feed.Publisher
	Limiter        *rate.Limiter
	Config         infra.PipelineConfig
	DefaultVoiceID string
	Logger         infra.Logger
	Now            func() time.Time
}

// Pipeline coordinates stage executors over persisted unit state.
type Pipeline struct {
	projects       domain.ProjectRepository
	units          domain.UnitRepository
	ledger         *credits.Ledger
	cache          *cache.Cache
	writer         writer.Writer
	images         ImageGenerator
	voice          VoiceSynthesizer
	queue          JobQueue
	publisher      feed.Publisher
	limiter        *rate.Limiter
	cfg            infra.PipelineConfig
	defaultVoiceID string
	logger         infra.Logger
	now            func() time.Time
}

func New(d Deps) (*Pipeline, error) {
	switch {
	case d.Projects == nil, d.Units == nil:
		return nil, fmt.Errorf("pipeline: repositories are required")
	case d.Ledger == nil, d.Cache == nil:
		return nil, fmt.Errorf("pipeline: ledger and cache are required")
	case d.Writer == nil, d.Images == nil, d.Voice == nil:
		return nil, fmt.Errorf("pipeline: providers are required")
	case d.Queue == nil:
		return nil, fmt.Errorf("pipeline: job queue is required")
	}
	if d.Publisher == nil {
		d.Publisher = feed.Nop{}
	}
	if d.Limiter == nil {
		d.Limiter = NewLimiter(d.Config)
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	if d.Config.FanOutLimit <= 0 {
		d.Config.FanOutLimit = 4
	}
	if d.Config.GeneratingTimeout <= 0 {
		d.Config.GeneratingTimeout = 10 * time.Minute
	}
	return &Pipeline{
		projects:       d.Projects,
		units:          d.Units,
		ledger:         d.Ledger,
		cache:          d.Cache,
		writer:         d.Writer,
		images:         d.Images,
		voice:          d.Voice,
		queue:          d.Queue,
		publisher:      d.Publisher,
		limiter:        d.Limiter,
		cfg:            d.Config,
		defaultVoiceID: d.DefaultVoiceID,
		logger:         d.Logger.With().Str("component", "pipeline").Logger(),
		now:            d.Now,
	}, nil
}

// NewLimiter builds the token bucket shared by every provider call. A
// non-positive rate disables pacing.
func NewLimiter(cfg infra.PipelineConfig) *rate.Limiter {
	if cfg.ProviderRate <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := cfg.ProviderBurst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(cfg.ProviderRate), burst)
}

// pace blocks until the shared provider budget admits one more call.
func (p *Pipeline) pace(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// project loads a project and checks that userID owns it. An empty userID
// skips the check.
func (p *Pipeline) project(ctx context.Context, projectID, userID string) (*domain.Project, error) {
	if projectID == "" {
		return nil, fmt.Errorf("%w: project id is required", domain.ErrValidation)
	}
	proj, err := p.projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if userID != "" && proj.UserID != userID {
		return nil, fmt.Errorf("project %s: %w", projectID, domain.ErrForbidden)
	}
	return proj, nil
}
