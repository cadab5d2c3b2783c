package sync

import (
	"context"
	"errors"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/project-planner/internal/model"
)

// fakeBackend records saves and can be switched into a failing mode.
type fakeBackend struct {
	mu      gosync.Mutex
	initial []model.Project
	saves   [][]model.Project
	failing bool
}

func (f *fakeBackend) Load(context.Context) ([]model.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return model.CloneProjects(f.initial), nil
}

func (f *fakeBackend) Save(_ context.Context, projects []model.Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errors.New("backend unavailable")
	}
	f.saves = append(f.saves, model.CloneProjects(projects))
	return nil
}

func (f *fakeBackend) setFailing(failing bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing = failing
}

func (f *fakeBackend) lastSave() []model.Project {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.saves) == 0 {
		return nil
	}
	return f.saves[len(f.saves)-1]
}

func newTestController(t *testing.T, backend Backend, opts ...Option) *Controller {
	t.Helper()
	c := New(backend, opts...)
	require.NoError(t, c.Load(context.Background()))
	t.Cleanup(c.Stop)
	return c
}

func waitSynced(t *testing.T, c *Controller) {
	t.Helper()
	require.Eventually(t, func() bool {
		st := c.Status()
		return st.State == StateIdle && !st.Dirty
	}, 2*time.Second, 5*time.Millisecond)
}

func TestLoadPopulatesAggregate(t *testing.T) {
	backend := &fakeBackend{initial: []model.Project{{ID: "p1", Title: "existing"}}}
	c := newTestController(t, backend)

	projects := c.Projects()
	require.Len(t, projects, 1)
	assert.Equal(t, "existing", projects[0].Title)
	assert.Equal(t, StateIdle, c.Status().State)
}

func TestCreateProjectAppliesLocallyThenPushes(t *testing.T) {
	backend := &fakeBackend{}
	c := newTestController(t, backend)

	created := c.CreateProject()

	// Visible locally before any backend round trip.
	projects := c.Projects()
	require.Len(t, projects, 1)
	assert.Equal(t, created.ID, projects[0].ID)

	waitSynced(t, c)
	saved := backend.lastSave()
	require.Len(t, saved, 1)
	assert.Equal(t, created.ID, saved[0].ID)
}

func TestFailedPushKeepsLocalState(t *testing.T) {
	backend := &fakeBackend{}
	c := newTestController(t, backend)
	backend.setFailing(true)

	created := c.CreateProject()

	require.Eventually(t, func() bool {
		return c.Status().State == StateError
	}, 2*time.Second, 5*time.Millisecond)

	st := c.Status()
	assert.Error(t, st.Err)
	assert.True(t, st.Dirty, "local state is ahead of the backend")

	// No rollback: the optimistic update stays visible.
	projects := c.Projects()
	require.Len(t, projects, 1)
	assert.Equal(t, created.ID, projects[0].ID)
	assert.Nil(t, backend.lastSave())
}

func TestRecoveryAfterFailedPush(t *testing.T) {
	backend := &fakeBackend{}
	c := newTestController(t, backend)
	backend.setFailing(true)

	c.CreateProject()
	require.Eventually(t, func() bool {
		return c.Status().State == StateError
	}, 2*time.Second, 5*time.Millisecond)

	backend.setFailing(false)
	require.NoError(t, c.SetProjectInfo(c.Projects()[0].ID, "recovered", ""))

	waitSynced(t, c)
	saved := backend.lastSave()
	require.Len(t, saved, 1)
	assert.Equal(t, "recovered", saved[0].Title)
	assert.NoError(t, c.Status().Err)
}

func TestStepAndSubtaskMutations(t *testing.T) {
	backend := &fakeBackend{}
	c := newTestController(t, backend)

	project := c.CreateProject()

	step, err := c.AddStep(project.ID, "Demolition", nil)
	require.NoError(t, err)

	sub, err := c.AddSubtask(project.ID, step.ID, "rent a skip")
	require.NoError(t, err)

	require.NoError(t, c.ToggleSubtask(project.ID, step.ID, sub.ID))
	require.NoError(t, c.RenameSubtask(project.ID, step.ID, sub.ID, "rent a bigger skip"))
	require.NoError(t, c.SetStepInfo(project.ID, step.ID, "Demolition", "swing hammers"))
	require.NoError(t, c.SetStepCompleted(project.ID, step.ID, true))

	got := c.Projects()[0].FindStep(step.ID)
	require.NotNil(t, got)
	assert.Equal(t, "swing hammers", got.Description)
	assert.True(t, got.Completed)
	require.Len(t, got.Subtasks, 1)
	assert.True(t, got.Subtasks[0].Done)
	assert.Equal(t, "rent a bigger skip", got.Subtasks[0].Title)

	require.NoError(t, c.RemoveSubtask(project.ID, step.ID, sub.ID))
	assert.Empty(t, c.Projects()[0].FindStep(step.ID).Subtasks)

	require.NoError(t, c.RemoveStep(project.ID, step.ID))
	assert.Empty(t, c.Projects()[0].Steps)

	waitSynced(t, c)
}

func TestMutationsOnMissingTargetsError(t *testing.T) {
	c := newTestController(t, &fakeBackend{})

	assert.Error(t, c.SetProjectInfo("nope", "t", "d"))
	_, err := c.AddStep("nope", "t", nil)
	assert.Error(t, err)

	project := c.CreateProject()
	assert.Error(t, c.SetStepCompleted(project.ID, "nope", true))
	assert.Error(t, c.RemoveStep(project.ID, "nope"))
	_, err = c.AddSubtask(project.ID, "nope", "t")
	assert.Error(t, err)

	step, err := c.AddStep(project.ID, "real", nil)
	require.NoError(t, err)
	assert.Error(t, c.RemoveSubtask(project.ID, step.ID, "nope"))
}

func TestDueDateNormalizedAtWrite(t *testing.T) {
	c := newTestController(t, &fakeBackend{})
	project := c.CreateProject()
	step, err := c.AddStep(project.ID, "deadline work", nil)
	require.NoError(t, err)

	date := "2024-06-01"
	require.NoError(t, c.SetStepDueDate(project.ID, step.ID, &date))
	got := c.Projects()[0].FindStep(step.ID)
	require.NotNil(t, got.DueDate)
	assert.Equal(t, "2024-06-01", *got.DueDate)

	garbage := "someday soon"
	require.NoError(t, c.SetStepDueDate(project.ID, step.ID, &garbage))
	assert.Nil(t, c.Projects()[0].FindStep(step.ID).DueDate)

	require.NoError(t, c.SetProjectDueDate(project.ID, &date))
	require.NotNil(t, c.Projects()[0].DueDate)
	assert.Equal(t, "2024-06-01", *c.Projects()[0].DueDate)
}

func TestCreateProjectWithSeed(t *testing.T) {
	seed := func() []model.Step {
		return []model.Step{{ID: "seed-1", Title: "first things first", Subtasks: []model.Subtask{}}}
	}
	c := newTestController(t, &fakeBackend{}, WithSeed(seed))

	project := c.CreateProject()
	require.Len(t, project.Steps, 1)
	assert.Equal(t, "first things first", project.Steps[0].Title)
}

func TestFlush(t *testing.T) {
	backend := &fakeBackend{}
	c := newTestController(t, backend)

	c.CreateProject()
	require.NoError(t, c.Flush(context.Background()))
	require.Len(t, backend.lastSave(), 1)
}

func TestStopThenLoadRestartsPusher(t *testing.T) {
	backend := &fakeBackend{}
	c := New(backend)
	require.NoError(t, c.Load(context.Background()))
	c.Stop()

	// A second session over the same controller gets a working pusher.
	require.NoError(t, c.Load(context.Background()))
	t.Cleanup(c.Stop)

	created := c.CreateProject()
	waitSynced(t, c)

	saved := backend.lastSave()
	require.Len(t, saved, 1)
	assert.Equal(t, created.ID, saved[0].ID)
}

func TestResultsReportPushOutcomes(t *testing.T) {
	backend := &fakeBackend{}
	c := newTestController(t, backend)
	backend.setFailing(true)

	c.CreateProject()

	select {
	case result := <-c.Results():
		assert.Error(t, result.Err)
	case <-time.After(2 * time.Second):
		t.Fatal("no push result received")
	}
}
