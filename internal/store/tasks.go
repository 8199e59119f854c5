package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"

	appLog "blockplan/internal/log"
	"blockplan/internal/model"
)

type tasksFile struct {
	Tasks []model.Task `yaml:"tasks"`
}

// LoadTasks reads a tasks file. A missing file yields no tasks.
func LoadTasks(path string) ([]model.Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var f tasksFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse tasks %s: %w", path, err)
	}
	return f.Tasks, nil
}

// TaskSource holds the latest snapshot of the tasks file.
type TaskSource struct {
	mu    sync.RWMutex
	path  string
	tasks []model.Task
}

// NewTaskSource returns a source for path; call Reload to read it.
func NewTaskSource(path string) *TaskSource {
	return &TaskSource{path: path}
}

// StaticTasks wraps a fixed task list.
func StaticTasks(tasks []model.Task) *TaskSource {
	return &TaskSource{tasks: slices.Clone(tasks)}
}

// Reload re-reads the file. On error the previous snapshot is kept.
func (s *TaskSource) Reload() error {
	if s.path == "" {
		return nil
	}
	tasks, err := LoadTasks(s.path)
	if err != nil {
		appLog.Error("reload tasks failed", err, "path", s.path)
		return err
	}
	s.mu.Lock()
	s.tasks = tasks
	s.mu.Unlock()
	appLog.Debug("tasks reloaded", "path", s.path, "count", len(tasks))
	return nil
}

// List returns the current snapshot.
func (s *TaskSource) List() []model.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.tasks)
}
