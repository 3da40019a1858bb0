package ports

import (
	"context"

	"github.com/taskledger/core/internal/domain/entities"
)

// AuthService interface for registration, login and session resolution.
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*entities.User, error)
	Login(ctx context.Context, req LoginRequest) (string, error)
	Logout(ctx context.Context, token string) error
	ResolveSession(ctx context.Context, token string) (*entities.User, error)
}

// TaskService interface for task operations scoped to the requesting user.
type TaskService interface {
	AddTask(ctx context.Context, owner string, req AddTaskRequest) (*entities.Task, error)
	ListTasks(ctx context.Context, owner string) ([]entities.Task, error)
	DeleteTask(ctx context.Context, caller string, id int64) error
}

// Request/Response Types

type RegisterRequest struct {
	Username string `json:"username" form:"username" validate:"required"`
	Password string `json:"password" form:"password" validate:"required"`
}

type LoginRequest struct {
	Username string `json:"username" form:"username" validate:"required"`
	Password string `json:"password" form:"password" validate:"required"`
}

type AddTaskRequest struct {
	Task string `json:"task" form:"task" validate:"required"`
}
