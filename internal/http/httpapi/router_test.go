package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storyboard/internal/adapter/memory"
	"storyboard/internal/cache"
	"storyboard/internal/credits"
	"storyboard/internal/feed"
	"storyboard/internal/http/handlers"
	"storyboard/internal/infra"
	"storyboard/internal/middleware"
	"storyboard/internal/pipeline"
	"storyboard/internal/providers/genai"
	"storyboard/internal/providers/voice"
	"storyboard/internal/queue"
	"storyboard/internal/storage"
	"storyboard/internal/writer"
)

const secret = "router-secret"

type server struct {
	*httptest.Server
	store *memory.Store
	token string
}

func newServer(t *testing.T) *server {
	t.Helper()
	store := memory.NewStore()
	files, err := storage.NewFileStore(t.TempDir(), "http://cdn.test")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	logger := infra.NopLogger()
	hub := feed.NewHub(16, logger)
	t.Cleanup(hub.Close)
	ledger := credits.NewLedger(store, logger)
	q := queue.New(store, 3)
	p, err := pipeline.New(pipeline.Deps{
		Projects:       store,
		Units:          store,
		Ledger:         ledger,
		Cache:          cache.New(files, "", logger),
		Writer:         writer.NewStaticWriter(),
		Images:         genai.NewClient(genai.Options{Logger: logger}),
		Voice:          voice.NewClient(voice.Options{Logger: logger}),
		Queue:          q,
		Publisher:      hub,
		Config:         infra.PipelineConfig{Costs: map[string]int{"shot_audio": 1, "shot_image": 1}},
		DefaultVoiceID: "voice-1",
		Logger:         logger,
	})
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	app := &handlers.App{Pipeline: p, Ledger: ledger, Jobs: q, Hub: hub, Logger: logger}
	srv := httptest.NewServer(NewRouter(app, Options{JWTSecret: secret, RateLimitPerMin: 1000, Logger: logger}))
	t.Cleanup(srv.Close)
	token, _ := middleware.SignJWT(secret, "user-1", time.Hour)
	return &server{Server: srv, store: store, token: token}
}

func (s *server) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, s.URL+path, &buf)
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		_ = json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode
}

func TestHealthIsPublic(t *testing.T) {
	s := newServer(t)
	resp, err := http.Get(s.URL + "/v1/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	resp, _ = http.Get(s.URL + "/v1/credits")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
}

func TestProjectFlow(t *testing.T) {
	s := newServer(t)

	var proj struct {
		ID string `json:"id"`
	}
	if code := s.do(t, http.MethodPost, "/v1/projects", map[string]string{"title": "Harbor", "concept": "a storm"}, &proj); code != http.StatusCreated {
		t.Fatalf("create project: %d", code)
	}
	if code := s.do(t, http.MethodPost, "/v1/projects", map[string]string{"title": ""}, nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty project, got %d", code)
	}

	var story struct {
		StorylineID string `json:"storyline_id"`
		SceneCount  int    `json:"scene_count"`
	}
	if code := s.do(t, http.MethodPost, "/v1/projects/"+proj.ID+"/storyline", nil, &story); code != http.StatusOK || story.SceneCount != 3 {
		t.Fatalf("storyline: %d %+v", code, story)
	}
	if code := s.do(t, http.MethodPut, "/v1/projects/"+proj.ID+"/storylines/"+story.StorylineID+"/selected", nil, nil); code != http.StatusOK {
		t.Fatalf("select storyline: %d", code)
	}

	var fin struct {
		ScenesProcessed int `json:"scenes_processed"`
		ShotsCreated    int `json:"shots_created"`
	}
	if code := s.do(t, http.MethodPost, "/v1/projects/"+proj.ID+"/finalize", nil, &fin); code != http.StatusOK || fin.ShotsCreated != 6 {
		t.Fatalf("finalize: %d %+v", code, fin)
	}

	var snap struct {
		Shots []struct {
			ID          string `json:"id"`
			ImageStatus string `json:"image_status"`
		} `json:"shots"`
	}
	if code := s.do(t, http.MethodGet, "/v1/projects/"+proj.ID, nil, &snap); code != http.StatusOK || len(snap.Shots) != 6 {
		t.Fatalf("snapshot: %d, %d shots", code, len(snap.Shots))
	}
	shotID := snap.Shots[0].ID
	if snap.Shots[0].ImageStatus != "prompt_ready" {
		t.Fatalf("unexpected image status %q", snap.Shots[0].ImageStatus)
	}

	var errBody struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if code := s.do(t, http.MethodPost, "/v1/shots/"+shotID+"/audio", nil, &errBody); code != http.StatusPaymentRequired || errBody.Error.Code != "insufficient_credits" {
		t.Fatalf("expected 402, got %d %+v", code, errBody)
	}

	if _, err := s.store.Grant(context.Background(), "user-1", 2, "grant", nil); err != nil {
		t.Fatalf("Grant: %v", err)
	}
	var audio struct {
		AudioURL  string `json:"audio_url"`
		FromCache bool   `json:"from_cache"`
	}
	if code := s.do(t, http.MethodPost, "/v1/shots/"+shotID+"/audio", map[string]string{}, &audio); code != http.StatusOK || audio.AudioURL == "" || audio.FromCache {
		t.Fatalf("audio: %d %+v", code, audio)
	}
	if code := s.do(t, http.MethodPost, "/v1/shots/"+shotID+"/audio", nil, &audio); code != http.StatusOK || !audio.FromCache {
		t.Fatalf("second audio: %d %+v", code, audio)
	}

	var queued struct {
		JobID string `json:"job_id"`
	}
	if code := s.do(t, http.MethodPost, "/v1/shots/"+shotID+"/image", nil, &queued); code != http.StatusAccepted || queued.JobID == "" {
		t.Fatalf("image: %d %+v", code, queued)
	}
	var job struct {
		Status string `json:"status"`
	}
	if code := s.do(t, http.MethodGet, "/v1/jobs/"+queued.JobID, nil, &job); code != http.StatusOK || job.Status != "pending" {
		t.Fatalf("job: %d %+v", code, job)
	}

	var balance struct {
		Available int `json:"available"`
	}
	if code := s.do(t, http.MethodGet, "/v1/credits", nil, &balance); code != http.StatusOK || balance.Available != 1 {
		t.Fatalf("balance: %d %+v", code, balance)
	}
	var use struct {
		Granted bool `json:"granted"`
	}
	if code := s.do(t, http.MethodPost, "/v1/credits/use", map[string]any{"resource_type": "export", "cost": 2}, &use); code != http.StatusOK || use.Granted {
		t.Fatalf("use credits: %d %+v", code, use)
	}
}

func TestForeignProjectIsForbidden(t *testing.T) {
	s := newServer(t)
	var proj struct {
		ID string `json:"id"`
	}
	s.do(t, http.MethodPost, "/v1/projects", map[string]string{"title": "Mine", "concept": "c"}, &proj)

	s.token, _ = middleware.SignJWT(secret, "user-2", time.Hour)
	if code := s.do(t, http.MethodGet, "/v1/projects/"+proj.ID, nil, nil); code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", code)
	}
	if code := s.do(t, http.MethodGet, "/v1/projects/missing", nil, nil); code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
}
