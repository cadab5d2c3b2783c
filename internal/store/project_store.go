package store

import (
	"context"
	"time"

	"github.com/nhle/project-planner/internal/due"
	"github.com/nhle/project-planner/internal/kv"
	"github.com/nhle/project-planner/internal/model"
)

// Persistence slot keys.
const (
	// SlotProjects holds the canonical JSON array of projects.
	SlotProjects = "projects_v1"

	// SlotLegacySteps is the pre-project schema: a bare JSON array of
	// steps with no project wrapper. Read-only for migration purposes.
	SlotLegacySteps = "steps_v1"
)

// ProjectStore is the domain layer over the versioned slot store: it owns
// id generation, first-run seeding, and the migration that upgrades
// arbitrary legacy or partial records into the canonical project shape.
type ProjectStore struct {
	slot   *Store[[]model.Project]
	legacy *Store[[]model.Step]
	newID  IDGenerator
	now    func() time.Time
}

// ProjectStoreOption configures a ProjectStore.
type ProjectStoreOption func(*ProjectStore)

// WithIDGenerator replaces the id generation strategy.
func WithIDGenerator(gen IDGenerator) ProjectStoreOption {
	return func(ps *ProjectStore) {
		ps.newID = gen
	}
}

// WithClock replaces the time source, used by tests.
func WithClock(now func() time.Time) ProjectStoreOption {
	return func(ps *ProjectStore) {
		ps.now = now
	}
}

// NewProjectStore creates a project store over the given backend.
func NewProjectStore(backend kv.Backend, opts ...ProjectStoreOption) *ProjectStore {
	ps := &ProjectStore{
		newID: NewID,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(ps)
	}
	ps.slot = New(backend, SlotProjects,
		func() []model.Project { return []model.Project{} },
		WithMigrate(ps.Migrate),
	)
	ps.legacy = New(backend, SlotLegacySteps,
		func() []model.Step { return []model.Step{} },
		WithMigrate(ps.migrateSteps),
	)
	return ps
}

// Load reads the project aggregate, migrated to canonical shape.
func (ps *ProjectStore) Load(ctx context.Context) ([]model.Project, error) {
	return ps.slot.Load(ctx)
}

// Save replaces the persisted aggregate with the given projects.
func (ps *ProjectStore) Save(ctx context.Context, projects []model.Project) error {
	return ps.slot.Save(ctx, projects)
}

// Reset removes the project slot entirely.
func (ps *ProjectStore) Reset(ctx context.Context) error {
	return ps.slot.Reset(ctx)
}

// Migrate maps raw records to canonical project shape: missing ids get
// freshly generated ones, a missing createdAt becomes the current time,
// due dates are normalized to date-only, and step/subtask sequences are
// rebuilt so they are never nil. Idempotent.
func (ps *ProjectStore) Migrate(projects []model.Project) []model.Project {
	out := make([]model.Project, len(projects))
	for i, p := range projects {
		if p.ID == "" {
			p.ID = ps.newID()
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = ps.now()
		}
		p.DueDate = due.Normalize(p.DueDate)
		p.Steps = ps.migrateSteps(p.Steps)
		out[i] = p
	}
	return out
}

// migrateSteps normalizes a step sequence in place of whatever was stored.
func (ps *ProjectStore) migrateSteps(steps []model.Step) []model.Step {
	out := make([]model.Step, len(steps))
	for i, s := range steps {
		if s.ID == "" {
			s.ID = ps.newID()
		}
		s.DueDate = due.Normalize(s.DueDate)
		subtasks := make([]model.Subtask, len(s.Subtasks))
		for j, t := range s.Subtasks {
			if t.ID == "" {
				t.ID = ps.newID()
			}
			subtasks[j] = t
		}
		s.Subtasks = subtasks
		out[i] = s
	}
	return out
}

// NewProject returns a fresh canonical project. An empty id means
// "generate one"; nil steps mean the default seed content.
func (ps *ProjectStore) NewProject(id string, steps []model.Step) model.Project {
	if id == "" {
		id = ps.newID()
	}
	if steps == nil {
		steps = ps.DefaultSeed()
	}
	return model.Project{
		ID:        id,
		CreatedAt: ps.now(),
		Steps:     steps,
	}
}

// DefaultSeed returns the illustrative first-run steps. This is fixture
// content, not business logic, and may be replaced freely.
func (ps *ProjectStore) DefaultSeed() []model.Step {
	return []model.Step{
		{
			ID:    ps.newID(),
			Title: "Outline the project",
			Subtasks: []model.Subtask{
				{ID: ps.newID(), Title: "Write down the goal"},
				{ID: ps.newID(), Title: "List the people involved"},
			},
		},
		{
			ID:    ps.newID(),
			Title: "First milestone",
			Subtasks: []model.Subtask{
				{ID: ps.newID(), Title: "Break the work into steps"},
			},
		},
	}
}

// LoadLegacy reads the pre-project flat step slot, normalized the same
// way as nested steps. The decision of when to fold this data into a
// project belongs to the caller; the store only exposes the primitives.
func (ps *ProjectStore) LoadLegacy(ctx context.Context) ([]model.Step, error) {
	return ps.legacy.Load(ctx)
}

// RemoveLegacy deletes the legacy slot once its data has been folded
// into the canonical store.
func (ps *ProjectStore) RemoveLegacy(ctx context.Context) error {
	return ps.legacy.Reset(ctx)
}
