// Package sync keeps an in-memory project aggregate and mirrors every
// mutation to a durable backend.
//
// Writes are two-phase: a mutation applies to local state immediately and
// is then pushed to the backend in the background. A failed push never
// rolls back the local change; the divergence is surfaced as a distinct
// error state instead of being hidden.
package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nhle/project-planner/internal/due"
	"github.com/nhle/project-planner/internal/model"
	"github.com/nhle/project-planner/internal/store"
)

// State represents the controller's relationship to its backend.
type State int

const (
	// StateIdle means local state and backend agree as far as we know.
	StateIdle State = iota

	// StateSyncing means a background push is in flight.
	StateSyncing

	// StateError means the last push failed; local state is ahead of
	// the backend until a later push succeeds.
	StateError
)

// Status is a snapshot of the controller's sync state.
type Status struct {
	State State

	// Dirty is true while local mutations have not been confirmed
	// written to the backend.
	Dirty bool

	// LastSync is when the backend last confirmed a write.
	LastSync time.Time

	// Err is the error from the most recent failed push, nil otherwise.
	Err error
}

// Result reports the outcome of a single background push.
type Result struct {
	Err error
	At  time.Time
}

// Backend is the durable side of the controller: either the local project
// store or the remote API adapter.
type Backend interface {
	Load(ctx context.Context) ([]model.Project, error)
	Save(ctx context.Context, projects []model.Project) error
}

// defaultPushTimeout bounds a single background save.
const defaultPushTimeout = 30 * time.Second

// Controller owns the in-memory aggregate. Mutations apply locally first,
// then a single pusher goroutine snapshots and writes the whole aggregate;
// concurrent writers follow last-write-wins with no merge.
type Controller struct {
	backend     Backend
	log         zerolog.Logger
	newID       store.IDGenerator
	now         func() time.Time
	seed        func() []model.Step
	pushTimeout time.Duration

	mu       gosync.Mutex
	projects []model.Project
	state    State
	lastErr  error
	lastSync time.Time
	seq      uint64
	synced   uint64
	running  bool

	kickCh   chan struct{}
	stopCh   chan struct{}
	doneCh   chan struct{}
	resultCh chan Result
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller's logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Controller) {
		c.log = log
	}
}

// WithIDGenerator replaces the id generation strategy.
func WithIDGenerator(gen store.IDGenerator) Option {
	return func(c *Controller) {
		c.newID = gen
	}
}

// WithClock replaces the time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// WithSeed sets the step fixture used for newly created projects.
// The default is no steps.
func WithSeed(seed func() []model.Step) Option {
	return func(c *Controller) {
		c.seed = seed
	}
}

// WithPushTimeout bounds a single background save.
func WithPushTimeout(d time.Duration) Option {
	return func(c *Controller) {
		c.pushTimeout = d
	}
}

// New creates a controller over the given backend.
func New(backend Backend, opts ...Option) *Controller {
	c := &Controller{
		backend:     backend,
		log:         zerolog.Nop(),
		newID:       store.NewID,
		now:         time.Now,
		pushTimeout: defaultPushTimeout,
		kickCh:      make(chan struct{}, 1),
		resultCh:    make(chan Result, 16),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load reads the aggregate from the backend into memory and starts the
// pusher. Call once at startup.
func (c *Controller) Load(ctx context.Context) error {
	projects, err := c.backend.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading aggregate: %w", err)
	}

	c.mu.Lock()
	c.projects = projects
	if !c.running {
		c.running = true
		c.stopCh = make(chan struct{})
		c.doneCh = make(chan struct{})
		go c.pushLoop(c.stopCh, c.doneCh)
	}
	c.mu.Unlock()
	return nil
}

// Stop halts the pusher goroutine and waits for an in-flight push to end.
// A later Load starts a fresh pusher.
func (c *Controller) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	stopCh, doneCh := c.stopCh, c.doneCh
	c.mu.Unlock()

	close(stopCh)
	<-doneCh
}

// Projects returns a deep copy of the current aggregate.
func (c *Controller) Projects() []model.Project {
	c.mu.Lock()
	defer c.mu.Unlock()
	return model.CloneProjects(c.projects)
}

// Status returns the current sync status.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		State:    c.state,
		Dirty:    c.seq != c.synced,
		LastSync: c.lastSync,
		Err:      c.lastErr,
	}
}

// Results is the stream of push outcomes. Sends never block; outcomes are
// dropped when the consumer falls behind.
func (c *Controller) Results() <-chan Result {
	return c.resultCh
}

// Flush pushes the current aggregate synchronously. Used at shutdown to
// avoid losing the tail of a session to a fire-and-forget push.
func (c *Controller) Flush(ctx context.Context) error {
	c.mu.Lock()
	snapshot := model.CloneProjects(c.projects)
	seq := c.seq
	c.mu.Unlock()

	if err := c.backend.Save(ctx, snapshot); err != nil {
		c.recordPush(seq, err)
		return fmt.Errorf("flushing aggregate: %w", err)
	}
	c.recordPush(seq, nil)
	return nil
}

// === Mutations ===

// CreateProject appends a new project with seeded steps and returns it.
func (c *Controller) CreateProject() model.Project {
	var steps []model.Step
	if c.seed != nil {
		steps = c.seed()
	} else {
		steps = []model.Step{}
	}
	project := model.Project{
		ID:        c.newID(),
		CreatedAt: c.now(),
		Steps:     steps,
	}

	c.mu.Lock()
	c.projects = append(c.projects, model.CloneProject(project))
	c.markDirtyLocked()
	c.mu.Unlock()

	c.kick()
	return project
}

// SetProjectInfo updates a project's title and description.
func (c *Controller) SetProjectInfo(projectID, title, description string) error {
	return c.mutateProject(projectID, func(p *model.Project) {
		p.Title = title
		p.Description = description
	})
}

// SetProjectDueDate updates a project's due date, normalized to date-only
// at the point of write.
func (c *Controller) SetProjectDueDate(projectID string, date *string) error {
	return c.mutateProject(projectID, func(p *model.Project) {
		p.DueDate = due.Normalize(date)
	})
}

// SetProjectImage updates a project's image reference.
func (c *Controller) SetProjectImage(projectID string, image *string) error {
	return c.mutateProject(projectID, func(p *model.Project) {
		p.Image = image
	})
}

// AddStep appends a step to a project and returns it.
func (c *Controller) AddStep(projectID, title string, dueDate *string) (*model.Step, error) {
	step := model.Step{
		ID:       c.newID(),
		Title:    title,
		DueDate:  due.Normalize(dueDate),
		Subtasks: []model.Subtask{},
	}
	err := c.mutateProject(projectID, func(p *model.Project) {
		p.Steps = append(p.Steps, step)
	})
	if err != nil {
		return nil, err
	}
	return &step, nil
}

// SetStepInfo updates a step's title and description.
func (c *Controller) SetStepInfo(projectID, stepID, title, description string) error {
	return c.mutateStep(projectID, stepID, func(s *model.Step) {
		s.Title = title
		s.Description = description
	})
}

// SetStepDueDate updates a step's due date, normalized to date-only.
func (c *Controller) SetStepDueDate(projectID, stepID string, date *string) error {
	return c.mutateStep(projectID, stepID, func(s *model.Step) {
		s.DueDate = due.Normalize(date)
	})
}

// SetStepCompleted sets or clears a step's completed override.
func (c *Controller) SetStepCompleted(projectID, stepID string, completed bool) error {
	return c.mutateStep(projectID, stepID, func(s *model.Step) {
		s.Completed = completed
	})
}

// RemoveStep deletes a step from a project.
func (c *Controller) RemoveStep(projectID, stepID string) error {
	removed := false
	err := c.mutateProject(projectID, func(p *model.Project) {
		removed = p.RemoveStep(stepID)
	})
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("step %s not found in project %s", stepID, projectID)
	}
	return nil
}

// AddSubtask appends a subtask to a step and returns it.
func (c *Controller) AddSubtask(projectID, stepID, title string) (*model.Subtask, error) {
	subtask := model.Subtask{ID: c.newID(), Title: title}
	err := c.mutateStep(projectID, stepID, func(s *model.Step) {
		s.Subtasks = append(s.Subtasks, subtask)
	})
	if err != nil {
		return nil, err
	}
	return &subtask, nil
}

// ToggleSubtask flips a subtask's done flag.
func (c *Controller) ToggleSubtask(projectID, stepID, subtaskID string) error {
	return c.mutateSubtask(projectID, stepID, subtaskID, func(t *model.Subtask) {
		t.Done = !t.Done
	})
}

// RenameSubtask updates a subtask's title.
func (c *Controller) RenameSubtask(projectID, stepID, subtaskID, title string) error {
	return c.mutateSubtask(projectID, stepID, subtaskID, func(t *model.Subtask) {
		t.Title = title
	})
}

// RemoveSubtask deletes a subtask from a step.
func (c *Controller) RemoveSubtask(projectID, stepID, subtaskID string) error {
	removed := false
	err := c.mutateStep(projectID, stepID, func(s *model.Step) {
		removed = s.RemoveSubtask(subtaskID)
	})
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("subtask %s not found in step %s", subtaskID, stepID)
	}
	return nil
}

// === Internals ===

func (c *Controller) mutateProject(projectID string, fn func(*model.Project)) error {
	c.mu.Lock()
	project := c.findProjectLocked(projectID)
	if project == nil {
		c.mu.Unlock()
		return fmt.Errorf("project %s not found", projectID)
	}
	fn(project)
	c.markDirtyLocked()
	c.mu.Unlock()

	c.kick()
	return nil
}

func (c *Controller) mutateStep(projectID, stepID string, fn func(*model.Step)) error {
	c.mu.Lock()
	project := c.findProjectLocked(projectID)
	if project == nil {
		c.mu.Unlock()
		return fmt.Errorf("project %s not found", projectID)
	}
	step := project.FindStep(stepID)
	if step == nil {
		c.mu.Unlock()
		return fmt.Errorf("step %s not found in project %s", stepID, projectID)
	}
	fn(step)
	c.markDirtyLocked()
	c.mu.Unlock()

	c.kick()
	return nil
}

func (c *Controller) mutateSubtask(projectID, stepID, subtaskID string, fn func(*model.Subtask)) error {
	return c.mutateStep(projectID, stepID, func(s *model.Step) {
		if t := s.FindSubtask(subtaskID); t != nil {
			fn(t)
		}
	})
}

func (c *Controller) findProjectLocked(id string) *model.Project {
	for i := range c.projects {
		if c.projects[i].ID == id {
			return &c.projects[i]
		}
	}
	return nil
}

func (c *Controller) markDirtyLocked() {
	c.seq++
}

// kick wakes the pusher without blocking; a pending kick already covers
// this mutation because the pusher snapshots at push time.
func (c *Controller) kick() {
	select {
	case c.kickCh <- struct{}{}:
	default:
	}
}

// pushLoop is the single pusher goroutine: it coalesces kicks, snapshots
// the aggregate, and writes it whole to the backend.
func (c *Controller) pushLoop(stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	for {
		select {
		case <-stopCh:
			return
		case <-c.kickCh:
			c.push()
		}
	}
}

func (c *Controller) push() {
	c.mu.Lock()
	snapshot := model.CloneProjects(c.projects)
	seq := c.seq
	c.state = StateSyncing
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.pushTimeout)
	err := c.backend.Save(ctx, snapshot)
	cancel()

	c.recordPush(seq, err)
}

// recordPush updates sync state after a save attempt. On failure the local
// aggregate stays as-is; only the status flags the divergence.
func (c *Controller) recordPush(seq uint64, err error) {
	c.mu.Lock()
	if err != nil {
		c.state = StateError
		c.lastErr = err
	} else {
		c.lastErr = nil
		if seq > c.synced {
			c.synced = seq
		}
		if c.seq == c.synced {
			c.state = StateIdle
		} else {
			// A newer mutation arrived during the push; a kick for
			// it is already pending.
			c.state = StateSyncing
		}
		c.lastSync = c.now()
	}
	at := c.now()
	c.mu.Unlock()

	if err != nil {
		c.log.Error().Err(err).Msg("background push failed; local state kept")
	}
	c.sendResult(Result{Err: err, At: at})
}

// sendResult emits a push outcome without blocking.
func (c *Controller) sendResult(result Result) {
	select {
	case c.resultCh <- result:
	default:
		// Drop if the channel is full to avoid blocking the pusher
	}
}
