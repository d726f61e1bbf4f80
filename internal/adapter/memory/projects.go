package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"storyboard/internal/domain"
)

func (s *Store) CreateProject(ctx context.Context, p *domain.Project) error {
	if p == nil || strings.TrimSpace(p.UserID) == "" || strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("%w: project user and title are required", domain.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := s.now()
	p.CreatedAt, p.UpdatedAt = now, now
	s.projects[p.ID] = *p
	return nil
}

func (s *Store) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, fmt.Errorf("project %s: %w", id, domain.ErrNotFound)
	}
	return &p, nil
}

func (s *Store) CreateStoryline(ctx context.Context, st *domain.Storyline) error {
	if st == nil || st.ProjectID == "" {
		return fmt.Errorf("%w: storyline project is required", domain.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[st.ProjectID]; !ok {
		return fmt.Errorf("project %s: %w", st.ProjectID, domain.ErrNotFound)
	}
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	st.IsSelected = false
	st.CreatedAt = s.tick()
	s.storylines[st.ID] = *st
	return nil
}

func (s *Store) ListStorylines(ctx context.Context, projectID string) ([]domain.Storyline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Storyline
	for _, st := range s.storylines {
		if st.ProjectID == projectID {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) SelectedStoryline(ctx context.Context, projectID string) (*domain.Storyline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.storylines {
		if st.ProjectID == projectID && st.IsSelected {
			return &st, nil
		}
	}
	return nil, fmt.Errorf("selected storyline for %s: %w", projectID, domain.ErrNotFound)
}

func (s *Store) SetSelectedStoryline(ctx context.Context, projectID, storylineID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	target, ok := s.storylines[storylineID]
	if !ok || target.ProjectID != projectID {
		return fmt.Errorf("storyline %s: %w", storylineID, domain.ErrNotFound)
	}
	for id, st := range s.storylines {
		if st.ProjectID == projectID && st.IsSelected {
			st.IsSelected = false
			s.storylines[id] = st
		}
	}
	target.IsSelected = true
	s.storylines[storylineID] = target
	return nil
}

func (s *Store) ReplaceBreakdown(ctx context.Context, b domain.Breakdown) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[b.ProjectID]; !ok {
		return fmt.Errorf("project %s: %w", b.ProjectID, domain.ErrNotFound)
	}
	for id, u := range s.units {
		if u.ProjectID == b.ProjectID && breakdownKind(u.Kind) {
			delete(s.units, id)
		}
	}
	for id, sh := range s.shots {
		if sh.ProjectID == b.ProjectID {
			delete(s.shots, id)
		}
	}
	for id, sc := range s.scenes {
		if sc.ProjectID == b.ProjectID {
			delete(s.scenes, id)
		}
	}
	for id, ch := range s.characters {
		if ch.ProjectID == b.ProjectID {
			delete(s.characters, id)
		}
	}
	for _, sc := range b.Scenes {
		sc.ProjectID = b.ProjectID
		sc.StorylineID = b.StorylineID
		sc.ShotIdeas = append([]string(nil), sc.ShotIdeas...)
		sc.CreatedAt = s.tick()
		s.scenes[sc.ID] = sc
	}
	for _, ch := range b.Characters {
		ch.ProjectID = b.ProjectID
		ch.CreatedAt = s.tick()
		s.characters[ch.ID] = ch
	}
	s.insertUnitsLocked(b.Units)
	return nil
}

func (s *Store) ListScenes(ctx context.Context, projectID string) ([]domain.Scene, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Scene
	for _, sc := range s.scenes {
		if sc.ProjectID == projectID {
			sc.ShotIdeas = append([]string(nil), sc.ShotIdeas...)
			out = append(out, sc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (s *Store) GetScene(ctx context.Context, id string) (*domain.Scene, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.scenes[id]
	if !ok {
		return nil, fmt.Errorf("scene %s: %w", id, domain.ErrNotFound)
	}
	sc.ShotIdeas = append([]string(nil), sc.ShotIdeas...)
	return &sc, nil
}

func (s *Store) ListCharacters(ctx context.Context, projectID string) ([]domain.Character, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Character
	for _, ch := range s.characters {
		if ch.ProjectID == projectID {
			out = append(out, ch)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) GetCharacter(ctx context.Context, id string) (*domain.Character, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.characters[id]
	if !ok {
		return nil, fmt.Errorf("character %s: %w", id, domain.ErrNotFound)
	}
	return &ch, nil
}

func (s *Store) CreateShots(ctx context.Context, sceneID string, shots []domain.Shot, units []domain.GenerationUnit) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.scenes[sceneID]; !ok {
		return false, fmt.Errorf("scene %s: %w", sceneID, domain.ErrNotFound)
	}
	for _, sh := range s.shots {
		if sh.SceneID == sceneID {
			return false, nil
		}
	}
	for _, sh := range shots {
		sh.SceneID = sceneID
		now := s.tick()
		sh.CreatedAt, sh.UpdatedAt = now, now
		s.shots[sh.ID] = sh
	}
	s.insertUnitsLocked(units)
	return true, nil
}

func (s *Store) ListShots(ctx context.Context, projectID string) ([]domain.Shot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Shot
	for _, sh := range s.shots {
		if sh.ProjectID == projectID {
			out = append(out, sh)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		pi, pj := s.scenes[out[i].SceneID].Position, s.scenes[out[j].SceneID].Position
		if pi != pj {
			return pi < pj
		}
		return out[i].Position < out[j].Position
	})
	return out, nil
}

func (s *Store) ListSceneShots(ctx context.Context, sceneID string) ([]domain.Shot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Shot
	for _, sh := range s.shots {
		if sh.SceneID == sceneID {
			out = append(out, sh)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (s *Store) GetShot(ctx context.Context, id string) (*domain.Shot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, ok := s.shots[id]
	if !ok {
		return nil, fmt.Errorf("shot %s: %w", id, domain.ErrNotFound)
	}
	return &sh, nil
}

func (s *Store) UpdateShotPrompt(ctx context.Context, shotID, shotType, visualPrompt, dialogue string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, ok := s.shots[shotID]
	if !ok {
		return fmt.Errorf("shot %s: %w", shotID, domain.ErrNotFound)
	}
	sh.ShotType = shotType
	sh.VisualPrompt = visualPrompt
	sh.Dialogue = dialogue
	sh.UpdatedAt = s.now()
	s.shots[shotID] = sh
	return nil
}

// tick returns a strictly increasing timestamp so creation order survives
// coarse clocks.
func (s *Store) tick() time.Time {
	s.seq++
	return s.now().Add(time.Duration(s.seq) * time.Nanosecond)
}

func breakdownKind(k domain.UnitKind) bool {
	switch k {
	case domain.UnitKindCharacterImage, domain.UnitKindShotVisualPrompt, domain.UnitKindShotImage, domain.UnitKindShotAudio:
		return true
	}
	return false
}
