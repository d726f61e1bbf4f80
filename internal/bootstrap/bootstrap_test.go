package bootstrap

import (
	"context"
	"testing"
	"time"

	"storyboard/internal/domain"
	"storyboard/internal/infra"
)

func memoryConfig(t *testing.T) *infra.Config {
	return &infra.Config{
		StoreDriver:    "memory",
		StorageDriver:  "filesystem",
		StoragePath:    t.TempDir(),
		StorageBaseURL: "http://localhost/static",
		CacheNamespace: "test",
		TextProvider:   "gemini",
		DefaultVoiceID: "voice-1",
		Pipeline: infra.PipelineConfig{
			Workers:     2,
			MaxAttempts: 3,
			Costs:       map[string]int{"shot_image": 1},
		},
	}
}

func TestBuildMemoryRuntime(t *testing.T) {
	rt, err := Build(context.Background(), memoryConfig(t), infra.NopLogger())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer rt.Close()

	if rt.Postgres() {
		t.Fatalf("memory runtime reported postgres")
	}
	if rt.StaticDir == "" {
		t.Fatalf("filesystem storage should expose a static dir")
	}

	// Without keys the storyline stage still runs on the static writer.
	proj := &domain.Project{UserID: "u1", Title: "Dune sea", Concept: "a caravan gets lost"}
	if err := rt.Pipeline.CreateProject(context.Background(), proj); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	res, err := rt.Pipeline.GenerateStoryline(context.Background(), proj.ID, "u1")
	if err != nil {
		t.Fatalf("GenerateStoryline: %v", err)
	}
	if res.SceneCount == 0 {
		t.Fatalf("expected scenes, got %+v", res)
	}

	// ListenFeed returns at once without a database.
	done := make(chan struct{})
	go func() {
		rt.ListenFeed(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("ListenFeed blocked on the memory store")
	}
}

func TestWorkersRunUntilCancelled(t *testing.T) {
	rt, err := Build(context.Background(), memoryConfig(t), infra.NopLogger())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer rt.Close()

	pool, err := rt.Workers("test")
	if err != nil {
		t.Fatalf("Workers: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := pool.Run(ctx); err != context.DeadlineExceeded {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
