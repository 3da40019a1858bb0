package file

import (
	"context"

	"github.com/taskledger/core/internal/domain/entities"
	"github.com/taskledger/core/internal/ports"
)

// UserRepositoryImpl implements ports.UserRepository on top of the file store.
type UserRepositoryImpl struct {
	store *Store
}

// NewUserRepository creates a new file-backed user repository
func NewUserRepository(store *Store) ports.UserRepository {
	return &UserRepositoryImpl{store: store}
}

func (r *UserRepositoryImpl) Create(ctx context.Context, user *entities.User) error {
	return r.store.Update(func(snap *entities.Snapshot) error {
		if _, ok := snap.FindUser(user.Username); ok {
			return entities.ErrDuplicateUser
		}
		snap.Users = append(snap.Users, *user)
		return nil
	})
}

func (r *UserRepositoryImpl) GetByUsername(ctx context.Context, username string) (*entities.User, error) {
	var user entities.User
	err := r.store.View(func(snap *entities.Snapshot) error {
		found, ok := snap.FindUser(username)
		if !ok {
			return entities.ErrUserNotFound
		}
		user = *found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepositoryImpl) List(ctx context.Context) ([]entities.User, error) {
	var users []entities.User
	err := r.store.View(func(snap *entities.Snapshot) error {
		users = append([]entities.User{}, snap.Users...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *UserRepositoryImpl) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.store.View(func(snap *entities.Snapshot) error {
		count = int64(len(snap.Users))
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// TaskRepositoryImpl implements ports.TaskRepository on top of the file store.
type TaskRepositoryImpl struct {
	store *Store
}

// NewTaskRepository creates a new file-backed task repository
func NewTaskRepository(store *Store) ports.TaskRepository {
	return &TaskRepositoryImpl{store: store}
}

func (r *TaskRepositoryImpl) Create(ctx context.Context, task *entities.Task) error {
	return r.store.Update(func(snap *entities.Snapshot) error {
		snap.Tasks = append(snap.Tasks, *task)
		return nil
	})
}

func (r *TaskRepositoryImpl) ListByOwner(ctx context.Context, owner string) ([]entities.Task, error) {
	var tasks []entities.Task
	err := r.store.View(func(snap *entities.Snapshot) error {
		tasks = snap.TasksFor(owner)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *TaskRepositoryImpl) Delete(ctx context.Context, id int64) error {
	return r.store.Update(func(snap *entities.Snapshot) error {
		if !snap.RemoveTask(id) {
			return entities.ErrTaskNotFound
		}
		return nil
	})
}

func (r *TaskRepositoryImpl) GetByID(ctx context.Context, id int64) (*entities.Task, error) {
	var task entities.Task
	err := r.store.View(func(snap *entities.Snapshot) error {
		for _, t := range snap.Tasks {
			if t.ID == id {
				task = t
				return nil
			}
		}
		return entities.ErrTaskNotFound
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}
