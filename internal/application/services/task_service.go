package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/taskledger/core/internal/domain/entities"
	"github.com/taskledger/core/internal/infrastructure/logger"
	"github.com/taskledger/core/internal/ports"
)

// TaskService handles task operations scoped to the requesting user.
type TaskService struct {
	taskRepo         ports.TaskRepository
	enforceOwnership bool
	logger           *logger.Logger

	// Ids are derived from the millisecond clock but forced strictly
	// monotonic per process, so rapid successive adds cannot collide.
	idMu   sync.Mutex
	lastID int64
}

var _ ports.TaskService = (*TaskService)(nil)

// NewTaskService creates a new task service
func NewTaskService(taskRepo ports.TaskRepository, enforceOwnership bool, logger *logger.Logger) *TaskService {
	return &TaskService{
		taskRepo:         taskRepo,
		enforceOwnership: enforceOwnership,
		logger:           logger,
	}
}

// AddTask appends a new task owned by the given user.
func (s *TaskService) AddTask(ctx context.Context, owner string, req ports.AddTaskRequest) (*entities.Task, error) {
	if owner == "" {
		return nil, entities.ErrUnauthorized
	}
	if strings.TrimSpace(req.Task) == "" {
		return nil, entities.ErrInvalidInput
	}

	task := &entities.Task{
		ID:    s.nextID(),
		Text:  req.Task,
		Owner: owner,
	}

	if err := s.taskRepo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	s.logger.Info("Task created successfully", "task_id", task.ID, "owner", task.Owner)

	return task, nil
}

// ListTasks returns the caller's tasks in insertion order.
func (s *TaskService) ListTasks(ctx context.Context, owner string) ([]entities.Task, error) {
	if owner == "" {
		return nil, entities.ErrUnauthorized
	}

	tasks, err := s.taskRepo.ListByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	return tasks, nil
}

// DeleteTask removes the task with the given id. Deleting a missing id is a
// no-op that reports success. By default any authenticated caller may delete
// any task, matching the historical behavior; the ownership check is opt-in
// via security.enforce_task_ownership.
func (s *TaskService) DeleteTask(ctx context.Context, caller string, id int64) error {
	if caller == "" {
		return entities.ErrUnauthorized
	}

	if s.enforceOwnership {
		task, err := s.taskRepo.GetByID(ctx, id)
		if errors.Is(err, entities.ErrTaskNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to look up task: %w", err)
		}
		if !task.OwnedBy(caller) {
			s.logger.LogSecurityEvent("task_delete_denied", caller, "", map[string]interface{}{
				"task_id": id,
				"owner":   task.Owner,
			})
			return entities.ErrUnauthorized
		}
	}

	err := s.taskRepo.Delete(ctx, id)
	if errors.Is(err, entities.ErrTaskNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	s.logger.Info("Task deleted successfully", "task_id", id, "caller", caller)

	return nil
}

func (s *TaskService) nextID() int64 {
	s.idMu.Lock()
	defer s.idMu.Unlock()

	id := time.Now().UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	return id
}
