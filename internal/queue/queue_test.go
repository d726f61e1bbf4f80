package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"storyboard/internal/adapter/memory"
	"storyboard/internal/domain"
	"storyboard/internal/infra"
)

func newWorker(store *memory.Store, id string) *Worker {
	return NewWorker(store, WorkerOptions{ID: id, Lease: time.Minute, PollInterval: time.Millisecond, RetryBackoff: time.Hour}, infra.NopLogger())
}

func TestEnqueueEncodesPayload(t *testing.T) {
	store := memory.NewStore()
	q := New(store, 4)
	job, err := q.Enqueue(context.Background(), "shot_image", map[string]string{"shot_id": "s1"}, domain.JobPriorityHigh)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	got, err := q.Get(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got.Payload) != `{"shot_id":"s1"}` || got.MaxAttempts != 4 || got.Priority != domain.JobPriorityHigh {
		t.Fatalf("unexpected job %+v", got)
	}
	if _, err := q.Enqueue(context.Background(), "", nil, 0); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestProcessOneCompletes(t *testing.T) {
	store := memory.NewStore()
	q := New(store, 3)
	job, _ := q.Enqueue(context.Background(), "echo", map[string]int{"n": 1}, domain.JobPriorityNormal)

	w := newWorker(store, "w1")
	w.Handle("echo", func(ctx context.Context, j *domain.Job) (any, error) {
		return map[string]string{"ok": "yes"}, nil
	})
	processed, err := w.ProcessOne(context.Background())
	if err != nil || !processed {
		t.Fatalf("ProcessOne = %v, %v", processed, err)
	}
	got, _ := store.GetJob(context.Background(), job.ID)
	if got.Status != domain.JobStatusCompleted || got.Attempts != 1 || string(got.Result) != `{"ok":"yes"}` {
		t.Fatalf("unexpected job %+v", got)
	}

	processed, err = w.ProcessOne(context.Background())
	if err != nil || processed {
		t.Fatalf("expected idle worker, got %v, %v", processed, err)
	}
}

func TestRetryThenExhaust(t *testing.T) {
	store := memory.NewStore()
	q := New(store, 2)
	job, _ := q.Enqueue(context.Background(), "flaky", nil, domain.JobPriorityNormal)

	w := newWorker(store, "w1")
	w.backoff = 0
	w.Handle("flaky", func(ctx context.Context, j *domain.Job) (any, error) {
		return nil, fmt.Errorf("%w: 503", domain.ErrUpstreamProvider)
	})

	if _, err := w.ProcessOne(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	got, _ := store.GetJob(context.Background(), job.ID)
	if got.Status != domain.JobStatusPending || got.Attempts != 1 || got.LastError == "" {
		t.Fatalf("expected retry scheduled, got %+v", got)
	}

	if _, err := w.ProcessOne(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	got, _ = store.GetJob(context.Background(), job.ID)
	if got.Status != domain.JobStatusFailed || got.Attempts != 2 {
		t.Fatalf("expected terminal failure, got %+v", got)
	}
}

func TestPermanentErrorSkipsRetry(t *testing.T) {
	cases := map[string]error{
		"marked":    Permanent(errors.New("bad payload")),
		"admission": fmt.Errorf("debit: %w", domain.ErrAdmissionDenied),
		"unknown":   nil,
	}
	for name, handlerErr := range cases {
		t.Run(name, func(t *testing.T) {
			store := memory.NewStore()
			taskType := "task"
			if handlerErr == nil {
				taskType = "unregistered"
			}
			job, _ := New(store, 5).Enqueue(context.Background(), taskType, nil, 0)
			w := newWorker(store, "w1")
			w.Handle("task", func(ctx context.Context, j *domain.Job) (any, error) { return nil, handlerErr })

			if _, err := w.ProcessOne(context.Background()); err != nil {
				t.Fatalf("ProcessOne: %v", err)
			}
			got, _ := store.GetJob(context.Background(), job.ID)
			if got.Status != domain.JobStatusFailed || got.Attempts != 1 {
				t.Fatalf("expected immediate failure, got %+v", got)
			}
		})
	}
}

func TestHandlerPanicIsRecorded(t *testing.T) {
	store := memory.NewStore()
	job, _ := New(store, 1).Enqueue(context.Background(), "boom", nil, 0)
	w := newWorker(store, "w1")
	w.Handle("boom", func(ctx context.Context, j *domain.Job) (any, error) { panic("nil map") })

	if _, err := w.ProcessOne(context.Background()); err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}
	got, _ := store.GetJob(context.Background(), job.ID)
	if got.Status != domain.JobStatusFailed || got.LastError == "" {
		t.Fatalf("expected panic recorded as failure, got %+v", got)
	}
}

func TestConcurrentWorkersRunEachJobOnce(t *testing.T) {
	store := memory.NewStore()
	q := New(store, 3)
	const jobs = 20
	for i := 0; i < jobs; i++ {
		if _, err := q.Enqueue(context.Background(), "count", map[string]int{"i": i}, 0); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	var runs atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		w := newWorker(store, fmt.Sprintf("w%d", i))
		w.Handle("count", func(ctx context.Context, j *domain.Job) (any, error) {
			runs.Add(1)
			return nil, nil
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				processed, err := w.ProcessOne(context.Background())
				if err != nil {
					t.Errorf("ProcessOne: %v", err)
					return
				}
				if !processed {
					return
				}
			}
		}()
	}
	wg.Wait()
	if got := runs.Load(); got != jobs {
		t.Fatalf("expected %d runs, got %d", jobs, got)
	}
}

func TestPoolRunsUntilCancelled(t *testing.T) {
	store := memory.NewStore()
	q := New(store, 3)
	done := make(chan struct{}, 3)
	var workers []*Worker
	for i := 0; i < 2; i++ {
		w := newWorker(store, fmt.Sprintf("w%d", i))
		w.Handle("ping", func(ctx context.Context, j *domain.Job) (any, error) {
			done <- struct{}{}
			return nil, nil
		})
		workers = append(workers, w)
	}
	pool, err := NewPool(workers, infra.NopLogger())
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	for i := 0; i < 3; i++ {
		_, _ = q.Enqueue(context.Background(), "ping", nil, 0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- pool.Run(ctx) }()
	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("jobs not processed")
		}
	}
	cancel()
	select {
	case err := <-result:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not stop")
	}
}

func TestEnqueueUniqueReturnsOpenJob(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	q := New(store, 3)

	first, created, err := q.EnqueueUnique(ctx, "shot_image", "shot_image:s1", map[string]string{"shot_id": "s1"}, domain.JobPriorityHigh)
	if err != nil || !created {
		t.Fatalf("first EnqueueUnique = %v, %v", created, err)
	}
	again, created, err := q.EnqueueUnique(ctx, "shot_image", "shot_image:s1", map[string]string{"shot_id": "s1"}, domain.JobPriorityHigh)
	if err != nil || created || again.ID != first.ID {
		t.Fatalf("expected open job %s, got %+v created=%v err=%v", first.ID, again, created, err)
	}
	other, created, err := q.EnqueueUnique(ctx, "shot_image", "shot_image:s2", nil, domain.JobPriorityHigh)
	if err != nil || !created || other.ID == first.ID {
		t.Fatalf("distinct key should create a job, got %+v created=%v err=%v", other, created, err)
	}

	w := newWorker(store, "w1")
	w.Handle("shot_image", func(ctx context.Context, j *domain.Job) (any, error) { return nil, nil })
	for i := 0; i < 2; i++ {
		if _, err := w.ProcessOne(ctx); err != nil {
			t.Fatalf("ProcessOne: %v", err)
		}
	}
	next, created, err := q.EnqueueUnique(ctx, "shot_image", "shot_image:s1", nil, domain.JobPriorityHigh)
	if err != nil || !created || next.ID == first.ID {
		t.Fatalf("finished job should not block the key, got %+v created=%v err=%v", next, created, err)
	}
}

func TestBusyUnitIsRetried(t *testing.T) {
	err := fmt.Errorf("shot_image unit u1: %w: %w", domain.ErrUnitBusy, domain.ErrIllegalTransition)
	if IsPermanent(err) {
		t.Fatal("busy unit must be retryable")
	}
	if !IsPermanent(fmt.Errorf("unit u1: %w", domain.ErrIllegalTransition)) {
		t.Fatal("plain illegal transition stays permanent")
	}
}

func TestLeaseRenewedWhileHandlerRuns(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	job, _ := New(store, 3).Enqueue(ctx, "slow", nil, 0)

	opts := WorkerOptions{Lease: 60 * time.Millisecond, PollInterval: time.Millisecond, RetryBackoff: time.Hour}
	opts.ID = "a"
	a := NewWorker(store, opts, infra.NopLogger())
	release := make(chan struct{})
	a.Handle("slow", func(ctx context.Context, j *domain.Job) (any, error) {
		select {
		case <-release:
			return "done", nil
		case <-ctx.Done():
			return nil, context.Cause(ctx)
		}
	})
	opts.ID = "b"
	b := NewWorker(store, opts, infra.NopLogger())
	var ranTwice atomic.Bool
	b.Handle("slow", func(ctx context.Context, j *domain.Job) (any, error) {
		ranTwice.Store(true)
		return nil, nil
	})

	done := make(chan error, 1)
	go func() {
		_, err := a.ProcessOne(ctx)
		done <- err
	}()
	time.Sleep(200 * time.Millisecond)
	processed, err := b.ProcessOne(ctx)
	if err != nil || processed || ranTwice.Load() {
		t.Fatalf("second worker reclaimed a live job: processed=%v err=%v", processed, err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}
	got, _ := store.GetJob(ctx, job.ID)
	if got.Status != domain.JobStatusCompleted || got.Attempts != 1 {
		t.Fatalf("expected single completed attempt, got %+v", got)
	}
}

// lostLeaseJobs refuses every lease extension.
type lostLeaseJobs struct {
	*memory.Store
}

func (lostLeaseJobs) ExtendLease(context.Context, string, string, time.Duration) error {
	return domain.ErrLeaseExpired
}

func TestLostLeaseCancelsHandler(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	New(store, 3).Enqueue(ctx, "slow", nil, 0)

	w := NewWorker(lostLeaseJobs{store}, WorkerOptions{ID: "w1", Lease: 30 * time.Millisecond, RetryBackoff: time.Hour}, infra.NopLogger())
	cause := make(chan error, 1)
	w.Handle("slow", func(ctx context.Context, j *domain.Job) (any, error) {
		select {
		case <-ctx.Done():
			cause <- context.Cause(ctx)
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
			cause <- nil
			return nil, nil
		}
	})
	if _, err := w.ProcessOne(ctx); err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}
	if err := <-cause; !errors.Is(err, domain.ErrLeaseExpired) {
		t.Fatalf("handler context cause = %v, want lease expired", err)
	}
}
