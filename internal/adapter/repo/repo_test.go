package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"storyboard/internal/domain"
	"storyboard/internal/infra"
	"storyboard/internal/sqlinline"
)

type call struct {
	query string
	args  []any
}

type stubExecutor struct {
	calls    []call
	queryRow func(query string, args []any) pgx.Row
	exec     func(query string, args []any) (pgconn.CommandTag, error)
	txCount  int
}

func (s *stubExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.calls = append(s.calls, call{query: query, args: args})
	if s.exec == nil {
		return pgconn.NewCommandTag("UPDATE 1"), nil
	}
	return s.exec(query, args)
}

func (s *stubExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	s.calls = append(s.calls, call{query: query, args: args})
	if s.queryRow == nil {
		return stubRow{}
	}
	return s.queryRow(query, args)
}

func (s *stubExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (s *stubExecutor) InTx(ctx context.Context, fn func(tx infra.SQLExecutor) error) error {
	s.txCount++
	return fn(s)
}

type stubRow struct {
	scan func(dest ...any) error
}

func (r stubRow) Scan(dest ...any) error {
	if r.scan == nil {
		return pgx.ErrNoRows
	}
	return r.scan(dest...)
}

func unitRow(id string, status domain.UnitStatus) stubRow {
	return stubRow{scan: func(dest ...any) error {
		*dest[0].(*string) = id
		*dest[1].(*string) = string(domain.ParentShot)
		*dest[2].(*string) = "shot-1"
		*dest[3].(*string) = "project-1"
		*dest[4].(*string) = "scene-1"
		*dest[5].(*string) = string(domain.UnitKindShotImage)
		*dest[6].(*string) = string(status)
		*dest[10].(*int) = 1
		return nil
	}}
}

func TestCreditTryDebitDenied(t *testing.T) {
	exec := &stubExecutor{}
	repo := NewCreditRepository(exec)

	res, err := repo.TryDebit(context.Background(), domain.DebitRequest{UserID: "u1", ResourceType: "image", Cost: 5})
	if err != nil {
		t.Fatalf("TryDebit error: %v", err)
	}
	if res.Granted {
		t.Fatal("expected denial when the conditional update returns no row")
	}
	if len(exec.calls) != 1 || exec.calls[0].query != sqlinline.QDebitCredits {
		t.Fatalf("unexpected calls: %#v", exec.calls)
	}
	if meta, ok := exec.calls[0].args[3].([]byte); !ok || string(meta) != "{}" {
		t.Fatalf("metadata arg = %#v, want {}", exec.calls[0].args[3])
	}
}

func TestCreditTryDebitGranted(t *testing.T) {
	exec := &stubExecutor{queryRow: func(query string, args []any) pgx.Row {
		return stubRow{scan: func(dest ...any) error {
			*dest[0].(*int) = 4
			*dest[1].(*string) = "tx-1"
			return nil
		}}
	}}
	repo := NewCreditRepository(exec)

	res, err := repo.TryDebit(context.Background(), domain.DebitRequest{
		UserID: "u1", ResourceType: "audio", Cost: 1, Metadata: map[string]any{"shot_id": "s1"},
	})
	if err != nil {
		t.Fatalf("TryDebit error: %v", err)
	}
	if !res.Granted || res.Available != 4 || res.TransactionID != "tx-1" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestJobCompleteWithStaleLease(t *testing.T) {
	exec := &stubExecutor{exec: func(query string, args []any) (pgconn.CommandTag, error) {
		return pgconn.NewCommandTag("UPDATE 0"), nil
	}}
	repo := NewJobRepository(exec)

	err := repo.Complete(context.Background(), "job-1", "old-token", nil)
	if !errors.Is(err, domain.ErrLeaseExpired) {
		t.Fatalf("Complete error = %v, want ErrLeaseExpired", err)
	}
	if got := exec.calls[0].args[1]; got != "old-token" {
		t.Fatalf("lease token arg = %v, want old-token", got)
	}
}

func TestJobFailPassesRetryTime(t *testing.T) {
	exec := &stubExecutor{}
	repo := NewJobRepository(exec)
	retryAt := time.Now().Add(time.Minute)

	if err := repo.Fail(context.Background(), "job-1", "token", "boom", &retryAt); err != nil {
		t.Fatalf("Fail error: %v", err)
	}
	if got, ok := exec.calls[0].args[3].(*time.Time); !ok || !got.Equal(retryAt) {
		t.Fatalf("retry arg = %#v, want %v", exec.calls[0].args[3], retryAt)
	}
}

func TestJobClaimNextEmpty(t *testing.T) {
	repo := NewJobRepository(&stubExecutor{})
	_, err := repo.ClaimNext(context.Background(), "worker-1", time.Minute)
	if !errors.Is(err, domain.ErrNoJobAvailable) {
		t.Fatalf("ClaimNext error = %v, want ErrNoJobAvailable", err)
	}
}

func TestUnitTransitionIllegalWhenStatusMoved(t *testing.T) {
	exec := &stubExecutor{queryRow: func(query string, args []any) pgx.Row {
		if query == sqlinline.QTransitionUnit {
			return stubRow{}
		}
		return unitRow("unit-1", domain.UnitStatusGenerating)
	}}
	repo := NewUnitRepository(exec)

	_, err := repo.Transition(context.Background(), domain.Transition{
		UnitID: "unit-1",
		From:   []domain.UnitStatus{domain.UnitStatusPromptReady},
		To:     domain.UnitStatusGenerating,
	})
	if !errors.Is(err, domain.ErrIllegalTransition) {
		t.Fatalf("Transition error = %v, want ErrIllegalTransition", err)
	}
	from, ok := exec.calls[0].args[6].([]string)
	if !ok || len(from) != 1 || from[0] != "prompt_ready" {
		t.Fatalf("source statuses arg = %#v", exec.calls[0].args[6])
	}
}

func TestUnitTransitionMissingUnit(t *testing.T) {
	repo := NewUnitRepository(&stubExecutor{})
	_, err := repo.Transition(context.Background(), domain.Transition{
		UnitID:  "missing",
		From:    []domain.UnitStatus{domain.UnitStatusGenerating},
		To:      domain.UnitStatusFailed,
		Failure: "boom",
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Transition error = %v, want ErrNotFound", err)
	}
}

func TestUnitTransitionCompleted(t *testing.T) {
	exec := &stubExecutor{queryRow: func(query string, args []any) pgx.Row {
		return unitRow("unit-1", domain.UnitStatusCompleted)
	}}
	repo := NewUnitRepository(exec)

	u, err := repo.Transition(context.Background(), domain.Transition{
		UnitID:      "unit-1",
		From:        []domain.UnitStatus{domain.UnitStatusGenerating},
		To:          domain.UnitStatusCompleted,
		ArtifactRef: "https://cdn/x.png",
	})
	if err != nil {
		t.Fatalf("Transition error: %v", err)
	}
	if u.Status != domain.UnitStatusCompleted || u.Kind != domain.UnitKindShotImage {
		t.Fatalf("unexpected unit: %+v", u)
	}
}

func TestSetSelectedStorylineUnknownStoryline(t *testing.T) {
	exec := &stubExecutor{exec: func(query string, args []any) (pgconn.CommandTag, error) {
		if query == sqlinline.QMarkSelectedStoryline {
			return pgconn.NewCommandTag("UPDATE 0"), nil
		}
		return pgconn.NewCommandTag("UPDATE 1"), nil
	}}
	repo := NewProjectRepository(exec)

	err := repo.SetSelectedStoryline(context.Background(), "project-1", "storyline-x")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("SetSelectedStoryline error = %v, want ErrNotFound", err)
	}
	if exec.txCount != 1 {
		t.Fatalf("expected one transaction, got %d", exec.txCount)
	}
	if exec.calls[0].query != sqlinline.QClearSelectedStoryline || exec.calls[1].query != sqlinline.QMarkSelectedStoryline {
		t.Fatal("selection must clear before marking")
	}
}

func TestCreateShotsSkipsSceneWithShots(t *testing.T) {
	exec := &stubExecutor{queryRow: func(query string, args []any) pgx.Row {
		switch query {
		case sqlinline.QLockScene:
			return stubRow{scan: func(dest ...any) error { *dest[0].(*string) = "scene-1"; return nil }}
		case sqlinline.QCountSceneShots:
			return stubRow{scan: func(dest ...any) error { *dest[0].(*int) = 2; return nil }}
		}
		return stubRow{}
	}}
	repo := NewProjectRepository(exec)

	created, err := repo.CreateShots(context.Background(), "scene-1", []domain.Shot{{ID: "s1"}}, nil)
	if err != nil {
		t.Fatalf("CreateShots error: %v", err)
	}
	if created {
		t.Fatal("expected existing shots to short-circuit creation")
	}
	for _, c := range exec.calls {
		if c.query == sqlinline.QInsertShot {
			t.Fatal("no shot should be inserted")
		}
	}
}

func TestJobEnqueueReturnsOpenJobForDedupeKey(t *testing.T) {
	exec := &stubExecutor{queryRow: func(query string, args []any) pgx.Row {
		if query == sqlinline.QInsertJob {
			return stubRow{}
		}
		return stubRow{scan: func(dest ...any) error {
			*dest[0].(*string) = "job-open"
			*dest[1].(*string) = "shot_image"
			*dest[3].(*string) = string(domain.JobStatusProcessing)
			*dest[10].(*string) = "shot_image:shot-1"
			return nil
		}}
	}}
	repo := NewJobRepository(exec)

	job := &domain.Job{TaskType: "shot_image", DedupeKey: "shot_image:shot-1"}
	if err := repo.Enqueue(context.Background(), job); err != nil {
		t.Fatalf("Enqueue error: %v", err)
	}
	if job.ID != "job-open" || job.Status != domain.JobStatusProcessing {
		t.Fatalf("expected the open job, got %+v", job)
	}
	if got := exec.calls[0].args[6]; got != "shot_image:shot-1" {
		t.Fatalf("dedupe key arg = %v", got)
	}
	if exec.calls[1].query != sqlinline.QSelectOpenJobByKey {
		t.Fatalf("expected open job lookup, got %q", exec.calls[1].query)
	}
}

func TestJobExtendLeaseLost(t *testing.T) {
	exec := &stubExecutor{exec: func(query string, args []any) (pgconn.CommandTag, error) {
		return pgconn.NewCommandTag("UPDATE 0"), nil
	}}
	repo := NewJobRepository(exec)

	err := repo.ExtendLease(context.Background(), "job-1", "token", 30*time.Second)
	if !errors.Is(err, domain.ErrLeaseExpired) {
		t.Fatalf("ExtendLease error = %v, want ErrLeaseExpired", err)
	}
	if got := exec.calls[0].args[2]; got != float64(30) {
		t.Fatalf("lease seconds arg = %v", got)
	}
}
