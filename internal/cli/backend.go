package cli

import (
	"context"
	"fmt"
	"time"

	"blockplan/internal/client"
	"blockplan/internal/config"
	"blockplan/internal/model"
	"blockplan/internal/store"
)

// backend is the event and task source shared by the client-side commands:
// either a remote server or the local files the server would use.
type backend interface {
	ListEvents(ctx context.Context, start, end time.Time) ([]model.Event, error)
	ListTasks(ctx context.Context) ([]model.Task, error)
	CreateEvent(ctx context.Context, in model.EventInput) (model.Event, error)
	UpdateEvent(ctx context.Context, id string, in model.EventInput) (model.Event, error)
	DeleteEvent(ctx context.Context, id string) error
}

// localBackend reads the store and tasks files directly.
type localBackend struct {
	events *store.EventStore
	tasks  *store.TaskSource
}

func (l localBackend) ListEvents(ctx context.Context, start, end time.Time) ([]model.Event, error) {
	return l.events.List(ctx, start, end)
}

func (l localBackend) ListTasks(context.Context) ([]model.Task, error) {
	return l.tasks.List(), nil
}

func (l localBackend) CreateEvent(ctx context.Context, in model.EventInput) (model.Event, error) {
	return l.events.CreateEvent(ctx, in)
}

func (l localBackend) UpdateEvent(ctx context.Context, id string, in model.EventInput) (model.Event, error) {
	return l.events.UpdateEvent(ctx, id, in)
}

func (l localBackend) DeleteEvent(ctx context.Context, id string) error {
	return l.events.DeleteEvent(ctx, id)
}

func openLocal(cfg *config.Config) (localBackend, error) {
	events, err := store.OpenEvents(cfg.StorePath)
	if err != nil {
		return localBackend{}, fmt.Errorf("open store: %w", err)
	}
	tasks := store.NewTaskSource(cfg.TasksPath)
	if err := tasks.Reload(); err != nil {
		return localBackend{}, fmt.Errorf("load tasks: %w", err)
	}
	return localBackend{events: events, tasks: tasks}, nil
}

func newClient(cfg *config.Config, baseURL string) *client.Client {
	var opts []client.Option
	if cfg.BasicAuth != nil && cfg.BasicAuth.Username != "" {
		opts = append(opts, client.WithBasicAuth(cfg.BasicAuth.Username, cfg.BasicAuth.Password))
	}
	return client.New(baseURL, cfg.Timeout(), opts...)
}

// openBackend talks to the server when remote is set, otherwise it works on
// the local files.
func openBackend(cfg *config.Config, remote bool, baseURL string) (backend, error) {
	if remote {
		return newClient(cfg, baseURL), nil
	}
	return openLocal(cfg)
}
