package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"storyboard/internal/domain"
)

// StorylineResult summarizes the storyline and breakdown stages.
type StorylineResult struct {
	StorylineID    string `json:"storyline_id"`
	SceneCount     int    `json:"scene_count"`
	CharacterCount int    `json:"character_count"`
}

// UnitFailure reports a scene or shot that failed without aborting its
// siblings.
type UnitFailure struct {
	ParentID string `json:"parent_id"`
	Kind     string `json:"kind"`
	Reason   string `json:"reason"`
}

// FinalizeResult summarizes shot creation and prompt dispatch.
type FinalizeResult struct {
	ScenesProcessed int           `json:"scenes_processed"`
	ShotsCreated    int           `json:"shots_created"`
	JobsEnqueued    int           `json:"jobs_enqueued"`
	Failures        []UnitFailure `json:"failures"`
}

// GenerateStoryline runs the storyline stage and then the scene breakdown.
// A failure in either aborts the project setup.
func (p *Pipeline) GenerateStoryline(ctx context.Context, projectID, userID string) (*StorylineResult, error) {
	proj, err := p.project(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	st, err := p.generateStoryline(ctx, proj)
	if err != nil {
		return nil, err
	}
	b, err := p.generateBreakdown(ctx, proj, st)
	if err != nil {
		return nil, err
	}
	return &StorylineResult{
		StorylineID:    st.ID,
		SceneCount:     len(b.Scenes),
		CharacterCount: len(b.Characters),
	}, nil
}

// RegenerateBreakdown reruns the breakdown stage on the selected storyline.
func (p *Pipeline) RegenerateBreakdown(ctx context.Context, projectID, userID string) (*StorylineResult, error) {
	proj, err := p.project(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	st, err := p.projects.SelectedStoryline(ctx, proj.ID)
	if err != nil {
		return nil, err
	}
	b, err := p.generateBreakdown(ctx, proj, st)
	if err != nil {
		return nil, err
	}
	return &StorylineResult{StorylineID: st.ID, SceneCount: len(b.Scenes), CharacterCount: len(b.Characters)}, nil
}

// FinalizeProjectSetup creates shots for every scene, writes each shot's
// visual prompt and queues its image render. Scene and shot failures are
// collected in the result.
func (p *Pipeline) FinalizeProjectSetup(ctx context.Context, projectID, userID string) (*FinalizeResult, error) {
	proj, err := p.project(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	scenes, err := p.projects.ListScenes(ctx, proj.ID)
	if err != nil {
		return nil, err
	}
	if len(scenes) == 0 {
		return nil, fmt.Errorf("%w: project %s has no scenes", domain.ErrValidation, proj.ID)
	}

	var (
		mu  sync.Mutex
		res = &FinalizeResult{Failures: []UnitFailure{}}
	)
	record := func(parentID string, kind domain.UnitKind, err error) {
		mu.Lock()
		defer mu.Unlock()
		res.Failures = append(res.Failures, UnitFailure{ParentID: parentID, Kind: string(kind), Reason: err.Error()})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.FanOutLimit)
	for _, scene := range scenes {
		scene := scene
		g.Go(func() error {
			n, err := p.createSceneShots(gctx, scene)
			if err != nil {
				p.logger.Error().Err(err).Str("scene_id", scene.ID).Msg("create scene shots failed")
				record(scene.ID, domain.UnitKindSceneBreakdown, err)
				return nil
			}
			mu.Lock()
			res.ScenesProcessed++
			res.ShotsCreated += n
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	shots, err := p.projects.ListShots(ctx, proj.ID)
	if err != nil {
		return nil, err
	}
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.FanOutLimit)
	for _, shot := range shots {
		shot := shot
		g.Go(func() error {
			queued, err := p.prepareShot(gctx, proj, &shot)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				p.logger.Warn().Err(err).Str("shot_id", shot.ID).Msg("shot preparation failed")
				record(shot.ID, domain.UnitKindShotVisualPrompt, err)
				return nil
			}
			if queued {
				mu.Lock()
				res.JobsEnqueued++
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	p.logger.Info().
		Str("project_id", proj.ID).
		Int("scenes_processed", res.ScenesProcessed).
		Int("shots_created", res.ShotsCreated).
		Int("failures", len(res.Failures)).
		Msg("project setup finalized")
	return res, nil
}

// prepareShot writes the visual prompt when it is still outstanding and
// queues the image render once the image unit is prompt_ready.
func (p *Pipeline) prepareShot(ctx context.Context, proj *domain.Project, shot *domain.Shot) (bool, error) {
	vp, err := p.units.FindUnit(ctx, shot.ID, domain.UnitKindShotVisualPrompt)
	if err != nil {
		return false, err
	}
	switch vp.Status {
	case domain.UnitStatusPending, domain.UnitStatusFailed:
		if _, err := p.writeShotPrompt(ctx, proj, shot); err != nil {
			return false, err
		}
	case domain.UnitStatusGenerating:
		return false, nil
	}
	image, err := p.units.FindUnit(ctx, shot.ID, domain.UnitKindShotImage)
	if err != nil {
		return false, err
	}
	if image.Status != domain.UnitStatusPromptReady {
		return false, nil
	}
	_, created, err := p.queue.EnqueueUnique(ctx, TaskShotImage, jobKey(TaskShotImage, shot.ID), imageTask{ShotID: shot.ID, UserID: proj.UserID}, domain.JobPriorityNormal)
	if err != nil {
		return false, err
	}
	return created, nil
}

// RequestShotImage queues the image render for a shot. A render already
// queued or running for the shot is returned instead.
func (p *Pipeline) RequestShotImage(ctx context.Context, shotID, userID string) (*domain.Job, error) {
	shot, err := p.projects.GetShot(ctx, shotID)
	if err != nil {
		return nil, err
	}
	proj, err := p.project(ctx, shot.ProjectID, userID)
	if err != nil {
		return nil, err
	}
	job, _, err := p.queue.EnqueueUnique(ctx, TaskShotImage, jobKey(TaskShotImage, shot.ID), imageTask{ShotID: shot.ID, UserID: proj.UserID}, domain.JobPriorityNormal)
	return job, err
}

// RequestCharacterImage queues the portrait render for a character.
func (p *Pipeline) RequestCharacterImage(ctx context.Context, characterID, userID string) (*domain.Job, error) {
	ch, err := p.projects.GetCharacter(ctx, characterID)
	if err != nil {
		return nil, err
	}
	proj, err := p.project(ctx, ch.ProjectID, userID)
	if err != nil {
		return nil, err
	}
	job, _, err := p.queue.EnqueueUnique(ctx, TaskCharacterImage, jobKey(TaskCharacterImage, ch.ID), imageTask{CharacterID: ch.ID, UserID: proj.UserID}, domain.JobPriorityNormal)
	return job, err
}

// RetryResult says how a retry was carried out. Image retries are queued.
type RetryResult struct {
	UnitID string `json:"unit_id"`
	Kind   string `json:"kind"`
	JobID  string `json:"job_id,omitempty"`
	Status string `json:"status"`
}

// RetryUnit reruns the stage that owns a failed unit.
func (p *Pipeline) RetryUnit(ctx context.Context, unitID, userID string) (*RetryResult, error) {
	u, err := p.units.GetUnit(ctx, unitID)
	if err != nil {
		return nil, err
	}
	if _, err := p.project(ctx, u.ProjectID, userID); err != nil {
		return nil, err
	}
	if u.Status != domain.UnitStatusFailed {
		return nil, fmt.Errorf("unit %s is %s, only failed units can be retried: %w", u.ID, u.Status, domain.ErrIllegalTransition)
	}
	out := &RetryResult{UnitID: u.ID, Kind: string(u.Kind)}
	switch u.Kind {
	case domain.UnitKindStoryline:
		_, err = p.GenerateStoryline(ctx, u.ProjectID, userID)
	case domain.UnitKindSceneBreakdown:
		_, err = p.RegenerateBreakdown(ctx, u.ProjectID, userID)
	case domain.UnitKindShotVisualPrompt:
		_, err = p.GenerateVisualPrompt(ctx, u.ParentID, userID)
	case domain.UnitKindShotAudio:
		_, err = p.GenerateShotAudio(ctx, AudioRequest{ShotID: u.ParentID, UserID: userID})
	case domain.UnitKindShotImage:
		var job *domain.Job
		if job, err = p.RequestShotImage(ctx, u.ParentID, userID); err == nil {
			out.JobID = job.ID
		}
	case domain.UnitKindCharacterImage:
		var job *domain.Job
		if job, err = p.RequestCharacterImage(ctx, u.ParentID, userID); err == nil {
			out.JobID = job.ID
		}
	default:
		return nil, fmt.Errorf("%w: unknown unit kind %q", domain.ErrValidation, u.Kind)
	}
	if err != nil {
		return nil, err
	}
	if cur, err := p.units.GetUnit(ctx, u.ID); err == nil {
		out.Status = string(cur.Status)
	}
	return out, nil
}

// Snapshot returns the full observable state of a project.
func (p *Pipeline) Snapshot(ctx context.Context, projectID, userID string) (*domain.ProjectSnapshot, error) {
	proj, err := p.project(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	snap := &domain.ProjectSnapshot{Project: *proj}
	if snap.Storylines, err = p.projects.ListStorylines(ctx, proj.ID); err != nil {
		return nil, err
	}
	if snap.Scenes, err = p.projects.ListScenes(ctx, proj.ID); err != nil {
		return nil, err
	}
	if snap.Characters, err = p.projects.ListCharacters(ctx, proj.ID); err != nil {
		return nil, err
	}
	if snap.Shots, err = p.projects.ListShots(ctx, proj.ID); err != nil {
		return nil, err
	}
	if snap.Units, err = p.units.ListProjectUnits(ctx, proj.ID); err != nil {
		return nil, err
	}
	return snap, nil
}

// AuthorizeParent checks that userID owns the project, shot or character
// named by parentID.
func (p *Pipeline) AuthorizeParent(ctx context.Context, parentID, userID string) error {
	projectID := parentID
	if _, err := p.projects.GetProject(ctx, parentID); errors.Is(err, domain.ErrNotFound) {
		if shot, err := p.projects.GetShot(ctx, parentID); err == nil {
			projectID = shot.ProjectID
		} else if ch, err := p.projects.GetCharacter(ctx, parentID); err == nil {
			projectID = ch.ProjectID
		} else {
			return fmt.Errorf("feed %s: %w", parentID, domain.ErrNotFound)
		}
	} else if err != nil {
		return err
	}
	_, err := p.project(ctx, projectID, userID)
	return err
}
