// Package bootstrap assembles the stores, providers and pipeline shared by
// the api and worker binaries.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"

	"storyboard/internal/adapter/memory"
	"storyboard/internal/adapter/repo"
	"storyboard/internal/cache"
	"storyboard/internal/credits"
	"storyboard/internal/domain"
	"storyboard/internal/feed"
	"storyboard/internal/infra"
	"storyboard/internal/infra/credentials"
	"storyboard/internal/pipeline"
	"storyboard/internal/providers/genai"
	"storyboard/internal/providers/openai"
	"storyboard/internal/providers/voice"
	"storyboard/internal/queue"
	"storyboard/internal/sqlinline"
	"storyboard/internal/storage"
	"storyboard/internal/writer"
)

// Runtime holds everything a binary needs after startup.
type Runtime struct {
	Config   *infra.Config
	Logger   infra.Logger
	Pipeline *pipeline.Pipeline
	Ledger   *credits.Ledger
	Queue    *queue.Queue
	Hub      *feed.Hub
	Jobs     domain.JobRepository
	// StaticDir is set when artifacts live on the local filesystem.
	StaticDir string

	pool *pgxpool.Pool
}

// Postgres reports whether the runtime is backed by a database.
func (r *Runtime) Postgres() bool {
	return r.pool != nil
}

// Close releases the database pool and the feed hub.
func (r *Runtime) Close() {
	if r.Hub != nil {
		r.Hub.Close()
	}
	if r.pool != nil {
		r.pool.Close()
	}
}

// ListenFeed relays database notifications into the local hub until ctx ends.
// It is a no-op for the memory store, where publishers write to the hub directly.
func (r *Runtime) ListenFeed(ctx context.Context) {
	if r.pool == nil {
		return
	}
	bridge := feed.NewBridge(r.Hub, r.Logger)
	if err := bridge.Listen(ctx, r.Config.DatabaseURL); err != nil && ctx.Err() == nil {
		r.Logger.Error().Err(err).Msg("feed bridge stopped")
	}
}

// Workers builds the configured number of queue workers with the pipeline
// task handlers registered.
func (r *Runtime) Workers(prefix string) (*queue.Pool, error) {
	count := r.Config.Pipeline.Workers
	if count <= 0 {
		count = 1
	}
	workers := make([]*queue.Worker, 0, count)
	for i := 0; i < count; i++ {
		w := queue.NewWorker(r.Jobs, queue.WorkerOptions{
			ID:           fmt.Sprintf("%s-%d", prefix, i+1),
			Lease:        r.Config.Pipeline.LeaseDuration,
			PollInterval: r.Config.Pipeline.PollInterval,
			RetryBackoff: r.Config.Pipeline.RetryBackoff,
		}, r.Logger)
		r.Pipeline.RegisterHandlers(w)
		workers = append(workers, w)
	}
	return queue.NewPool(workers, r.Logger)
}

type stores struct {
	projects domain.ProjectRepository
	units    domain.UnitRepository
	credits  domain.CreditRepository
	jobs     domain.JobRepository
	sql      infra.SQLExecutor
	pool     *pgxpool.Pool
}

// Build wires the runtime from cfg.
func Build(ctx context.Context, cfg *infra.Config, logger infra.Logger) (*Runtime, error) {
	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	rt := &Runtime{Config: cfg, Logger: logger, Jobs: st.jobs, pool: st.pool}
	fail := func(err error) (*Runtime, error) {
		rt.Close()
		return nil, err
	}

	blobs, staticDir, err := openBlobStore(cfg, logger)
	if err != nil {
		return fail(err)
	}
	rt.StaticDir = staticDir

	var keys *credentials.Store
	if st.sql != nil {
		keys = credentials.NewStore(st.sql)
	}

	httpClient := &http.Client{Timeout: 90 * time.Second}
	gemini := genai.NewClient(genai.Options{
		APIKey:     keys.Resolve(ctx, credentials.ProviderGemini, cfg.GeminiAPIKey),
		BaseURL:    cfg.GeminiBaseURL,
		Model:      cfg.GeminiModel,
		ImageModel: cfg.GeminiImageModel,
		HTTPClient: httpClient,
		Logger:     logger,
	})
	if !gemini.HasKey() {
		logger.Warn().Str("model", gemini.ImageModel()).Msg("gemini api key missing, using synthetic frames")
	}
	speech := voice.NewClient(voice.Options{
		APIKey:     keys.Resolve(ctx, credentials.ProviderElevenLabs, cfg.ElevenLabsAPIKey),
		APIURL:     cfg.ElevenLabsURL,
		ModelID:    cfg.ElevenLabsModel,
		HTTPClient: httpClient,
		Logger:     logger,
	})

	textWriter, err := selectWriter(ctx, cfg, keys, gemini, httpClient, logger)
	if err != nil {
		return fail(err)
	}

	rt.Hub = feed.NewHub(64, logger)
	var publisher feed.Publisher = rt.Hub
	if st.sql != nil {
		publisher = feed.NewPGPublisher(st.sql)
	}

	rt.Ledger = credits.NewLedger(st.credits, logger)
	rt.Queue = queue.New(st.jobs, cfg.Pipeline.MaxAttempts)
	rt.Pipeline, err = pipeline.New(pipeline.Deps{
		Projects:       st.projects,
		Units:          st.units,
		Ledger:         rt.Ledger,
		Cache:          cache.New(blobs, cfg.CacheNamespace, logger),
		Writer:         textWriter,
		Images:         gemini,
		Voice:          speech,
		Queue:          rt.Queue,
		Publisher:      publisher,
		Config:         cfg.Pipeline,
		DefaultVoiceID: cfg.DefaultVoiceID,
		Logger:         logger,
	})
	if err != nil {
		return fail(err)
	}
	logger.Info().
		Str("store", cfg.StoreDriver).
		Str("storage", cfg.StorageDriver).
		Str("writer", textWriter.Name()).
		Msg("runtime ready")
	return rt, nil
}

func openStores(ctx context.Context, cfg *infra.Config, logger infra.Logger) (*stores, error) {
	if cfg.StoreDriver == "memory" {
		mem := memory.NewStore()
		return &stores{projects: mem, units: mem, credits: mem, jobs: mem}, nil
	}
	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		if err := infra.ApplySchema(ctx, pool, sqlinline.Schema); err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info().Msg("schema applied")
	}
	runner := infra.NewSQLRunner(pool, logger)
	return &stores{
		projects: repo.NewProjectRepository(runner),
		units:    repo.NewUnitRepository(runner),
		credits:  repo.NewCreditRepository(runner),
		jobs:     repo.NewJobRepository(runner),
		sql:      runner,
		pool:     pool,
	}, nil
}

func openBlobStore(cfg *infra.Config, logger infra.Logger) (storage.BlobStore, string, error) {
	if cfg.StorageDriver == "s3" {
		sess, err := storage.NewS3Session(cfg.S3Region)
		if err != nil {
			return nil, "", fmt.Errorf("s3 session: %w", err)
		}
		store, err := storage.NewS3Store(s3.New(sess), cfg.S3Bucket, cfg.S3PublicBaseURL, logger)
		return store, "", err
	}
	dir := cfg.StoragePath
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	store, err := storage.NewFileStore(dir, cfg.StorageBaseURL)
	if err != nil {
		return nil, "", fmt.Errorf("file storage: %w", err)
	}
	return store, dir, nil
}

func selectWriter(ctx context.Context, cfg *infra.Config, keys *credentials.Store, gemini *genai.Client, httpClient *http.Client, logger infra.Logger) (writer.Writer, error) {
	switch cfg.TextProvider {
	case "openai":
		key := keys.Resolve(ctx, credentials.ProviderOpenAI, cfg.OpenAIAPIKey)
		if key == "" {
			break
		}
		client, err := openai.NewClient(openai.Options{
			APIKey:       key,
			Model:        cfg.OpenAIModel,
			BaseURL:      cfg.OpenAIBaseURL,
			Organization: cfg.OpenAIOrg,
			HTTPClient:   httpClient,
			Logger:       logger,
		})
		if err != nil {
			return nil, err
		}
		return writer.NewLLMWriter(client, "openai:"+client.Model(), logger), nil
	case "static":
		return writer.NewStaticWriter(), nil
	default:
		if gemini.HasKey() {
			return writer.NewLLMWriter(gemini, "gemini:"+gemini.Model(), logger), nil
		}
	}
	logger.Warn().Str("provider", cfg.TextProvider).Msg("text provider has no api key, using static writer")
	return writer.NewStaticWriter(), nil
}
