package task

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
)

// storedTask mirrors a row of the tasks table.
type storedTask struct {
	baseTask
	errorMessage string
	updatedAt    time.Time
}

func (t *storedTask) Execute(context.Context) error { return nil }

// memTaskStore implements TaskStore in memory.
type memTaskStore struct {
	mu      sync.Mutex
	tasks   map[uuid.UUID]*storedTask
	saveErr error
}

func newMemTaskStore() *memTaskStore {
	return &memTaskStore{tasks: make(map[uuid.UUID]*storedTask)}
}

func (s *memTaskStore) SaveTask(ctx context.Context, task Task) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID()] = &storedTask{
		baseTask: baseTask{
			id:       task.ID(),
			taskType: task.Type(),
			payload:  task.Payload(),
			status:   task.Status(),
		},
		updatedAt: time.Now(),
	}
	return nil
}

func (s *memTaskStore) UpdateTaskStatus(ctx context.Context, id uuid.UUID, status TaskStatus, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[id]; ok {
		t.status = status
		t.errorMessage = msg
		t.updatedAt = time.Now()
	}
	return nil
}

func (s *memTaskStore) byStatus(status TaskStatus, olderThan time.Duration) []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Task
	for _, t := range s.tasks {
		if t.status != status {
			continue
		}
		if olderThan > 0 && time.Since(t.updatedAt) <= olderThan {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	return out
}

func (s *memTaskStore) GetPendingTasks(ctx context.Context) ([]Task, error) {
	return s.byStatus(TaskStatusPending, 0), nil
}

func (s *memTaskStore) GetProcessingTasks(ctx context.Context, olderThan time.Duration) ([]Task, error) {
	return s.byStatus(TaskStatusProcessing, olderThan), nil
}

func (s *memTaskStore) WithTx(*sql.Tx) TaskStore { return s }

func (s *memTaskStore) status(id uuid.UUID) TaskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[id]; ok {
		return t.status
	}
	return ""
}

// age backdates the last status change of a task.
func (s *memTaskStore) age(id uuid.UUID, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[id].updatedAt = time.Now().Add(-d)
}

// signallingRegistry rebuilds every "mock" task as one that reports its id
// on done when executed.
func signallingRegistry(done chan<- uuid.UUID) *Registry {
	reg := NewRegistry()
	reg.Register("mock", func(id uuid.UUID, payload []byte) (Task, error) {
		return &mockTask{
			id:       id,
			taskType: "mock",
			payload:  payload,
			status:   TaskStatusPending,
			execFn: func(context.Context) error {
				done <- id
				return nil
			},
		}, nil
	})
	return reg
}
