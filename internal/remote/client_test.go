package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/project-planner/internal/model"
)

func TestFetchProjects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/projects", r.URL.Path)
		assert.Equal(t, "Bearer sekrit", r.Header.Get("Authorization"))

		// Loosely-typed payload from an older server version.
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":7,"title":"From server","steps":[{"id":1,"completed":1,"subtasks":[]}]}]`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "sekrit")
	projects, err := client.FetchProjects(context.Background())
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "7", projects[0].ID)
	assert.Equal(t, "From server", projects[0].Title)
	require.Len(t, projects[0].Steps, 1)
	assert.True(t, projects[0].Steps[0].Completed)
}

func TestReplaceProjects(t *testing.T) {
	var received []model.Project
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/projects", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	err := client.ReplaceProjects(context.Background(), []model.Project{{ID: "p1", Title: "local"}})
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.Equal(t, "p1", received[0].ID)
}

func TestSaveProject(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/projects/p1", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	assert.NoError(t, client.SaveProject(context.Background(), model.Project{ID: "p1"}))
}

func TestCreateProjectUsesServerRecord(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.Write([]byte(`{"id":"server-assigned","title":"named by client","steps":[]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	created, err := client.CreateProject(context.Background(), model.Project{Title: "named by client"})
	require.NoError(t, err)
	assert.Equal(t, "server-assigned", created.ID)
}

func TestRateLimitRetry(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	_, err := client.FetchProjects(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(server.URL, "expired")
	_, err := client.FetchProjects(context.Background())
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
}

func TestServerErrorIsRecoverable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	err := client.ReplaceProjects(context.Background(), nil)
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	assert.False(t, IsUnauthorized(err))
}

func TestStoreLoadNormalizes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"title":"partial"}]`))
	}))
	defer server.Close()

	store := NewStore(NewClient(server.URL, ""), WithNormalize(
		func(projects []model.Project) []model.Project {
			for i := range projects {
				if projects[i].ID == "" {
					projects[i].ID = "filled"
				}
			}
			return projects
		}))

	projects, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "filled", projects[0].ID)
}
