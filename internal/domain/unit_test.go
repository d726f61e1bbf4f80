package domain

import (
	"errors"
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		kind UnitKind
		from UnitStatus
		to   UnitStatus
		want bool
	}{
		{name: "one-step pending to generating", kind: UnitKindShotAudio, from: UnitStatusPending, to: UnitStatusGenerating, want: true},
		{name: "one-step skips prompt_ready", kind: UnitKindShotAudio, from: UnitStatusPending, to: UnitStatusPromptReady, want: false},
		{name: "two-step pending to prompt_ready", kind: UnitKindShotImage, from: UnitStatusPending, to: UnitStatusPromptReady, want: true},
		{name: "two-step cannot start without prompt", kind: UnitKindShotImage, from: UnitStatusPending, to: UnitStatusGenerating, want: false},
		{name: "two-step prompt_ready to generating", kind: UnitKindShotImage, from: UnitStatusPromptReady, to: UnitStatusGenerating, want: true},
		{name: "pending never completes directly", kind: UnitKindShotImage, from: UnitStatusPending, to: UnitStatusCompleted, want: false},
		{name: "pending never completes directly one-step", kind: UnitKindStoryline, from: UnitStatusPending, to: UnitStatusCompleted, want: false},
		{name: "generating completes", kind: UnitKindCharacterImage, from: UnitStatusGenerating, to: UnitStatusCompleted, want: true},
		{name: "generating fails", kind: UnitKindCharacterImage, from: UnitStatusGenerating, to: UnitStatusFailed, want: true},
		{name: "retry from failed", kind: UnitKindShotImage, from: UnitStatusFailed, to: UnitStatusGenerating, want: true},
		{name: "regenerate from completed", kind: UnitKindShotAudio, from: UnitStatusCompleted, to: UnitStatusGenerating, want: true},
		{name: "completed cannot fail", kind: UnitKindShotAudio, from: UnitStatusCompleted, to: UnitStatusFailed, want: false},
		{name: "failed cannot return to pending", kind: UnitKindShotAudio, from: UnitStatusFailed, to: UnitStatusPending, want: false},
		{name: "completed cannot return to prompt_ready", kind: UnitKindShotImage, from: UnitStatusCompleted, to: UnitStatusPromptReady, want: false},
		{name: "generating is not reentrant", kind: UnitKindShotImage, from: UnitStatusGenerating, to: UnitStatusGenerating, want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanTransition(tc.kind, tc.from, tc.to); got != tc.want {
				t.Fatalf("CanTransition(%s, %s, %s) = %v, want %v", tc.kind, tc.from, tc.to, got, tc.want)
			}
		})
	}
}

func TestSourcesForGenerating(t *testing.T) {
	got := SourcesFor(UnitKindShotImage, UnitStatusGenerating)
	want := []UnitStatus{UnitStatusPromptReady, UnitStatusCompleted, UnitStatusFailed}
	if len(got) != len(want) {
		t.Fatalf("SourcesFor = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("SourcesFor[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestTransitionValidate(t *testing.T) {
	base := Transition{UnitID: "u1", From: []UnitStatus{UnitStatusGenerating}}

	completed := base
	completed.To = UnitStatusCompleted
	if err := completed.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("completed without artifact: err = %v, want ErrValidation", err)
	}

	failed := base
	failed.To = UnitStatusFailed
	if err := failed.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("failed without reason: err = %v, want ErrValidation", err)
	}

	noSource := Transition{UnitID: "u1", To: UnitStatusGenerating}
	if err := noSource.Validate(); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("missing source: err = %v, want ErrIllegalTransition", err)
	}
}

func TestTransitionApplyKeepsFieldInvariants(t *testing.T) {
	now := time.Now()
	deadline := now.Add(time.Minute)
	u := &GenerationUnit{Kind: UnitKindShotAudio, Status: UnitStatusFailed, FailureReason: "boom"}

	Transition{To: UnitStatusGenerating, Deadline: &deadline, Fingerprint: "abc"}.Apply(u, now)
	if u.FailureReason != "" || u.ArtifactRef != "" {
		t.Fatalf("generating unit kept stale fields: %+v", u)
	}
	if u.Attempts != 1 || u.DeadlineAt == nil || u.ContentFingerprint != "abc" {
		t.Fatalf("generating bookkeeping not applied: %+v", u)
	}

	Transition{To: UnitStatusCompleted, ArtifactRef: "https://cdn/a.mp3"}.Apply(u, now)
	if u.ArtifactRef == "" || u.FailureReason != "" || u.DeadlineAt != nil {
		t.Fatalf("completed invariants broken: %+v", u)
	}

	Transition{To: UnitStatusGenerating}.Apply(u, now)
	Transition{To: UnitStatusFailed, Failure: "timeout"}.Apply(u, now)
	if u.ArtifactRef != "" || u.FailureReason != "timeout" {
		t.Fatalf("failed invariants broken: %+v", u)
	}
}
