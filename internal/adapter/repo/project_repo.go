package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"storyboard/internal/domain"
	"storyboard/internal/infra"
	"storyboard/internal/sqlinline"
)

var breakdownKinds = []string{
	string(domain.UnitKindCharacterImage),
	string(domain.UnitKindShotVisualPrompt),
	string(domain.UnitKindShotImage),
	string(domain.UnitKindShotAudio),
}

// ProjectRepositoryPG implements domain.ProjectRepository on PostgreSQL.
type ProjectRepositoryPG struct {
	db infra.TxRunner
}

// NewProjectRepository creates a project repository.
func NewProjectRepository(db infra.TxRunner) *ProjectRepositoryPG {
	return &ProjectRepositoryPG{db: db}
}

func (r *ProjectRepositoryPG) CreateProject(ctx context.Context, p *domain.Project) error {
	if p == nil || strings.TrimSpace(p.UserID) == "" || strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("%w: project user and title are required", domain.ErrValidation)
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	row := r.db.QueryRow(ctx, sqlinline.QInsertProject,
		p.ID, p.UserID, p.Title, p.Concept, p.Genre, p.VisualStyle, p.AspectRatio, p.DefaultVoiceID)
	if err := row.Scan(&p.CreatedAt, &p.UpdatedAt); err != nil {
		return wrap("create project", err)
	}
	return nil
}

func (r *ProjectRepositoryPG) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	var p domain.Project
	err := r.db.QueryRow(ctx, sqlinline.QSelectProject, id).Scan(
		&p.ID, &p.UserID, &p.Title, &p.Concept, &p.Genre, &p.VisualStyle, &p.AspectRatio, &p.DefaultVoiceID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, wrap("get project", err)
	}
	return &p, nil
}

func (r *ProjectRepositoryPG) CreateStoryline(ctx context.Context, s *domain.Storyline) error {
	if s == nil || s.ProjectID == "" {
		return fmt.Errorf("%w: storyline project is required", domain.ErrValidation)
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	row := r.db.QueryRow(ctx, sqlinline.QInsertStoryline, s.ID, s.ProjectID, s.Title, s.Synopsis, s.Content)
	if err := row.Scan(&s.CreatedAt); err != nil {
		return wrap("create storyline", err)
	}
	s.IsSelected = false
	return nil
}

func (r *ProjectRepositoryPG) ListStorylines(ctx context.Context, projectID string) ([]domain.Storyline, error) {
	rows, err := r.db.Query(ctx, sqlinline.QSelectStorylines, projectID)
	if err != nil {
		return nil, wrap("list storylines", err)
	}
	defer rows.Close()
	var out []domain.Storyline
	for rows.Next() {
		s, err := scanStoryline(rows)
		if err != nil {
			return nil, wrap("list storylines", err)
		}
		out = append(out, *s)
	}
	return out, wrap("list storylines", rows.Err())
}

func (r *ProjectRepositoryPG) SelectedStoryline(ctx context.Context, projectID string) (*domain.Storyline, error) {
	s, err := scanStoryline(r.db.QueryRow(ctx, sqlinline.QSelectSelectedStoryline, projectID))
	if err != nil {
		return nil, wrap("selected storyline", err)
	}
	return s, nil
}

// SetSelectedStoryline clears and sets the selection in one transaction, so
// readers never observe zero or two selected storylines.
func (r *ProjectRepositoryPG) SetSelectedStoryline(ctx context.Context, projectID, storylineID string) error {
	return r.db.InTx(ctx, func(tx infra.SQLExecutor) error {
		if _, err := tx.Exec(ctx, sqlinline.QClearSelectedStoryline, projectID); err != nil {
			return wrap("clear selected storyline", err)
		}
		tag, err := tx.Exec(ctx, sqlinline.QMarkSelectedStoryline, storylineID, projectID)
		if err != nil {
			return wrap("mark selected storyline", err)
		}
		if tag.RowsAffected() != 1 {
			return fmt.Errorf("storyline %s: %w", storylineID, domain.ErrNotFound)
		}
		return nil
	})
}

func (r *ProjectRepositoryPG) ReplaceBreakdown(ctx context.Context, b domain.Breakdown) error {
	return r.db.InTx(ctx, func(tx infra.SQLExecutor) error {
		if _, err := tx.Exec(ctx, sqlinline.QDeleteBreakdownUnits, b.ProjectID, breakdownKinds); err != nil {
			return wrap("delete breakdown units", err)
		}
		for _, q := range []string{sqlinline.QDeleteProjectShots, sqlinline.QDeleteProjectScenes, sqlinline.QDeleteProjectCharacters} {
			if _, err := tx.Exec(ctx, q, b.ProjectID); err != nil {
				return wrap("delete breakdown", err)
			}
		}
		for _, sc := range b.Scenes {
			ideas, err := json.Marshal(nonNilStrings(sc.ShotIdeas))
			if err != nil {
				return fmt.Errorf("encode shot ideas: %w", err)
			}
			if _, err := tx.Exec(ctx, sqlinline.QInsertScene,
				sc.ID, b.ProjectID, b.StorylineID, sc.Position, sc.Title, sc.Description, sc.Location, sc.Mood, ideas); err != nil {
				return wrap("insert scene", err)
			}
		}
		for _, ch := range b.Characters {
			if _, err := tx.Exec(ctx, sqlinline.QInsertCharacter, ch.ID, b.ProjectID, ch.Name, ch.Description); err != nil {
				return wrap("insert character", err)
			}
		}
		return insertUnits(ctx, tx, b.Units)
	})
}

func (r *ProjectRepositoryPG) ListScenes(ctx context.Context, projectID string) ([]domain.Scene, error) {
	rows, err := r.db.Query(ctx, sqlinline.QSelectScenes, projectID)
	if err != nil {
		return nil, wrap("list scenes", err)
	}
	defer rows.Close()
	var out []domain.Scene
	for rows.Next() {
		sc, err := scanScene(rows)
		if err != nil {
			return nil, wrap("list scenes", err)
		}
		out = append(out, *sc)
	}
	return out, wrap("list scenes", rows.Err())
}

func (r *ProjectRepositoryPG) GetScene(ctx context.Context, id string) (*domain.Scene, error) {
	sc, err := scanScene(r.db.QueryRow(ctx, sqlinline.QSelectScene, id))
	if err != nil {
		return nil, wrap("get scene", err)
	}
	return sc, nil
}

func (r *ProjectRepositoryPG) ListCharacters(ctx context.Context, projectID string) ([]domain.Character, error) {
	rows, err := r.db.Query(ctx, sqlinline.QSelectCharacters, projectID)
	if err != nil {
		return nil, wrap("list characters", err)
	}
	defer rows.Close()
	var out []domain.Character
	for rows.Next() {
		var c domain.Character
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.Name, &c.Description, &c.CreatedAt); err != nil {
			return nil, wrap("list characters", err)
		}
		out = append(out, c)
	}
	return out, wrap("list characters", rows.Err())
}

func (r *ProjectRepositoryPG) GetCharacter(ctx context.Context, id string) (*domain.Character, error) {
	var c domain.Character
	if err := r.db.QueryRow(ctx, sqlinline.QSelectCharacter, id).Scan(&c.ID, &c.ProjectID, &c.Name, &c.Description, &c.CreatedAt); err != nil {
		return nil, wrap("get character", err)
	}
	return &c, nil
}

// CreateShots locks the scene row so concurrent finalize calls create the
// scene's shots once.
func (r *ProjectRepositoryPG) CreateShots(ctx context.Context, sceneID string, shots []domain.Shot, units []domain.GenerationUnit) (bool, error) {
	created := false
	err := r.db.InTx(ctx, func(tx infra.SQLExecutor) error {
		var locked string
		if err := tx.QueryRow(ctx, sqlinline.QLockScene, sceneID).Scan(&locked); err != nil {
			return wrap("lock scene", err)
		}
		var existing int
		if err := tx.QueryRow(ctx, sqlinline.QCountSceneShots, sceneID).Scan(&existing); err != nil {
			return wrap("count shots", err)
		}
		if existing > 0 {
			return nil
		}
		for _, s := range shots {
			if _, err := tx.Exec(ctx, sqlinline.QInsertShot, s.ID, s.ProjectID, sceneID, s.Position, s.Idea); err != nil {
				return wrap("insert shot", err)
			}
		}
		if err := insertUnits(ctx, tx, units); err != nil {
			return err
		}
		created = true
		return nil
	})
	return created, err
}

func (r *ProjectRepositoryPG) ListShots(ctx context.Context, projectID string) ([]domain.Shot, error) {
	rows, err := r.db.Query(ctx, sqlinline.QSelectProjectShots, projectID)
	if err != nil {
		return nil, wrap("list shots", err)
	}
	return collectShots(rows)
}

func (r *ProjectRepositoryPG) ListSceneShots(ctx context.Context, sceneID string) ([]domain.Shot, error) {
	rows, err := r.db.Query(ctx, sqlinline.QSelectSceneShots, sceneID)
	if err != nil {
		return nil, wrap("list scene shots", err)
	}
	return collectShots(rows)
}

func (r *ProjectRepositoryPG) GetShot(ctx context.Context, id string) (*domain.Shot, error) {
	s, err := scanShot(r.db.QueryRow(ctx, sqlinline.QSelectShot, id))
	if err != nil {
		return nil, wrap("get shot", err)
	}
	return s, nil
}

func (r *ProjectRepositoryPG) UpdateShotPrompt(ctx context.Context, shotID, shotType, visualPrompt, dialogue string) error {
	tag, err := r.db.Exec(ctx, sqlinline.QUpdateShotPrompt, shotID, shotType, visualPrompt, dialogue)
	if err != nil {
		return wrap("update shot prompt", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("shot %s: %w", shotID, domain.ErrNotFound)
	}
	return nil
}

func insertUnits(ctx context.Context, tx infra.SQLExecutor, units []domain.GenerationUnit) error {
	for _, u := range units {
		id := u.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, err := tx.Exec(ctx, sqlinline.QInsertUnit,
			id, string(u.ParentType), u.ParentID, u.ProjectID, u.SceneID, string(u.Kind)); err != nil {
			return wrap("insert unit", err)
		}
	}
	return nil
}

func scanStoryline(row pgx.Row) (*domain.Storyline, error) {
	var s domain.Storyline
	if err := row.Scan(&s.ID, &s.ProjectID, &s.Title, &s.Synopsis, &s.Content, &s.IsSelected, &s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func scanScene(row pgx.Row) (*domain.Scene, error) {
	var (
		sc    domain.Scene
		ideas []byte
	)
	if err := row.Scan(&sc.ID, &sc.ProjectID, &sc.StorylineID, &sc.Position, &sc.Title, &sc.Description, &sc.Location, &sc.Mood, &ideas, &sc.CreatedAt); err != nil {
		return nil, err
	}
	if len(ideas) > 0 {
		if err := json.Unmarshal(ideas, &sc.ShotIdeas); err != nil {
			return nil, fmt.Errorf("decode shot ideas: %w", err)
		}
	}
	return &sc, nil
}

func collectShots(rows pgx.Rows) ([]domain.Shot, error) {
	defer rows.Close()
	var out []domain.Shot
	for rows.Next() {
		s, err := scanShot(rows)
		if err != nil {
			return nil, wrap("scan shot", err)
		}
		out = append(out, *s)
	}
	return out, wrap("scan shots", rows.Err())
}

func scanShot(row pgx.Row) (*domain.Shot, error) {
	var s domain.Shot
	if err := row.Scan(&s.ID, &s.ProjectID, &s.SceneID, &s.Position, &s.Idea, &s.ShotType, &s.VisualPrompt, &s.Dialogue, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func nonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

var _ domain.ProjectRepository = (*ProjectRepositoryPG)(nil)
