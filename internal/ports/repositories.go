package ports

import (
	"context"
	"time"

	"github.com/taskledger/core/internal/domain/entities"
)

// UserRepository defines the interface for user data operations.
type UserRepository interface {
	Create(ctx context.Context, user *entities.User) error
	GetByUsername(ctx context.Context, username string) (*entities.User, error)
	List(ctx context.Context) ([]entities.User, error)
	Count(ctx context.Context) (int64, error)
}

// TaskRepository defines the interface for task data operations.
type TaskRepository interface {
	Create(ctx context.Context, task *entities.Task) error
	ListByOwner(ctx context.Context, owner string) ([]entities.Task, error)
	// Delete removes the task with the given id. It returns
	// entities.ErrTaskNotFound when no task matched; callers that want
	// idempotent semantics treat that as success.
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*entities.Task, error)
}

// SessionRepository defines the interface for server-side session records.
type SessionRepository interface {
	Create(ctx context.Context, username, token string, expiresAt time.Time) error
	GetByToken(ctx context.Context, token string) (*entities.Session, error)
	Delete(ctx context.Context, token string) error
	DeleteExpired(ctx context.Context) error
}
