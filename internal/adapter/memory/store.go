// Package memory is an in-process implementation of the repository
// interfaces. It backs STORE_DRIVER=memory and the package tests.
package memory

import (
	"sync"
	"time"

	"storyboard/internal/domain"
)

// Store keeps every entity behind one mutex, so each method is atomic.
type Store struct {
	mu  sync.Mutex
	now func() time.Time

	projects     map[string]domain.Project
	storylines   map[string]domain.Storyline
	scenes       map[string]domain.Scene
	characters   map[string]domain.Character
	shots        map[string]domain.Shot
	units        map[string]domain.GenerationUnit
	accounts     map[string]domain.CreditAccount
	transactions []domain.CreditTransaction
	jobs         map[string]domain.Job
	jobSeq       map[string]int
	seq          int
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		now:        func() time.Time { return time.Now().UTC() },
		projects:   map[string]domain.Project{},
		storylines: map[string]domain.Storyline{},
		scenes:     map[string]domain.Scene{},
		characters: map[string]domain.Character{},
		shots:      map[string]domain.Shot{},
		units:      map[string]domain.GenerationUnit{},
		accounts:   map[string]domain.CreditAccount{},
		jobs:       map[string]domain.Job{},
		jobSeq:     map[string]int{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var (
	_ domain.ProjectRepository = (*Store)(nil)
	_ domain.UnitRepository    = (*Store)(nil)
	_ domain.CreditRepository  = (*Store)(nil)
	_ domain.JobRepository     = (*Store)(nil)
)
