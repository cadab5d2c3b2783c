package remote

import (
	"context"
	"fmt"

	"github.com/nhle/project-planner/internal/model"
)

// FetchProjects retrieves the full project aggregate from the backend.
func (c *Client) FetchProjects(ctx context.Context) ([]model.Project, error) {
	var projects []model.Project
	if err := c.get(ctx, "/projects", &projects); err != nil {
		return nil, fmt.Errorf("fetching projects: %w", err)
	}
	return projects, nil
}

// ReplaceProjects overwrites the backend's aggregate with the given
// projects. Total replacement, matching the local slot semantics.
func (c *Client) ReplaceProjects(ctx context.Context, projects []model.Project) error {
	if err := c.put(ctx, "/projects", projects, nil); err != nil {
		return fmt.Errorf("replacing projects: %w", err)
	}
	return nil
}

// CreateProject posts a single new project and returns the stored record;
// where the server assigns its own id, the returned record carries it.
func (c *Client) CreateProject(ctx context.Context, project model.Project) (*model.Project, error) {
	var created model.Project
	if err := c.post(ctx, "/projects", project, &created); err != nil {
		return nil, fmt.Errorf("creating project: %w", err)
	}
	return &created, nil
}

// SaveProject overwrites a single project on the backend.
func (c *Client) SaveProject(ctx context.Context, project model.Project) error {
	if err := c.put(ctx, "/projects/"+project.ID, project, nil); err != nil {
		return fmt.Errorf("saving project %s: %w", project.ID, err)
	}
	return nil
}

// Normalize upgrades records that crossed the HTTP boundary into canonical
// shape, typically the aggregate store's migration.
type Normalize func([]model.Project) []model.Project

// Store adapts a Client to the aggregate load/save contract used by the
// sync controller, so a remote backend drops in where the local store does.
type Store struct {
	client    *Client
	normalize Normalize
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithNormalize runs the given migration over every fetched aggregate.
// Responses from older servers can be partially shaped, just like older
// local slots.
func WithNormalize(fn Normalize) StoreOption {
	return func(s *Store) {
		s.normalize = fn
	}
}

// NewStore creates a Store over the given client.
func NewStore(client *Client, opts ...StoreOption) *Store {
	s := &Store{client: client}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load fetches the aggregate, normalized when a migration is configured.
func (s *Store) Load(ctx context.Context) ([]model.Project, error) {
	projects, err := s.client.FetchProjects(ctx)
	if err != nil {
		return nil, err
	}
	if s.normalize != nil {
		projects = s.normalize(projects)
	}
	return projects, nil
}

// Save replaces the backend aggregate.
func (s *Store) Save(ctx context.Context, projects []model.Project) error {
	return s.client.ReplaceProjects(ctx, projects)
}
