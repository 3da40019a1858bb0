package file

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/taskledger/core/internal/domain/entities"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "database.json"))
}

func TestStore_LoadInitializesMissingFile(t *testing.T) {
	store := newTestStore(t)

	snap, err := store.Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(snap.Users) != 0 || len(snap.Tasks) != 0 {
		t.Errorf("expected empty snapshot, got %d users, %d tasks", len(snap.Users), len(snap.Tasks))
	}

	// The file must now exist with the empty snapshot written out.
	if _, err := os.Stat(store.path); err != nil {
		t.Errorf("expected data file to be created: %v", err)
	}
}

func TestStore_LoadMalformedFile(t *testing.T) {
	store := newTestStore(t)
	if err := os.WriteFile(store.path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := store.Load(); err == nil {
		t.Error("expected error for malformed data file")
	}
}

func TestStore_RoundTrip(t *testing.T) {
	store := newTestStore(t)

	snap := &entities.Snapshot{
		Users: []entities.User{{Username: "alice", PasswordHash: "hash1"}},
		Tasks: []entities.Task{{ID: 1, Text: "buy milk", Owner: "alice"}},
	}
	if err := store.Save(snap); err != nil {
		t.Fatalf("save: %v", err)
	}

	before, err := os.ReadFile(store.path)
	if err != nil {
		t.Fatal(err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := store.Save(loaded); err != nil {
		t.Fatalf("save after load: %v", err)
	}

	after, err := os.ReadFile(store.path)
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(before, after) {
		t.Errorf("save(load()) changed file content\nbefore: %s\nafter: %s", before, after)
	}
}

func TestStore_UpdateErrorDiscardsMutation(t *testing.T) {
	store := newTestStore(t)

	if err := store.Update(func(snap *entities.Snapshot) error {
		snap.Users = append(snap.Users, entities.User{Username: "alice", PasswordHash: "h"})
		return nil
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	sentinel := errors.New("boom")
	err := store.Update(func(snap *entities.Snapshot) error {
		snap.Users = nil
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}

	snap, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Users) != 1 {
		t.Errorf("expected failed update to leave last saved state, got %d users", len(snap.Users))
	}
}

func TestUserRepository_DuplicateCreate(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	repo := NewUserRepository(store)

	if err := repo.Create(ctx, &entities.User{Username: "alice", PasswordHash: "h1"}); err != nil {
		t.Fatalf("first create: %v", err)
	}

	err := repo.Create(ctx, &entities.User{Username: "alice", PasswordHash: "h2"})
	if !errors.Is(err, entities.ErrDuplicateUser) {
		t.Errorf("expected ErrDuplicateUser, got %v", err)
	}

	count, err := repo.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("expected exactly one user, got %d", count)
	}
}

func TestUserRepository_GetByUsernameIsCaseSensitive(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	repo := NewUserRepository(store)

	if err := repo.Create(ctx, &entities.User{Username: "Alice", PasswordHash: "h"}); err != nil {
		t.Fatal(err)
	}

	if _, err := repo.GetByUsername(ctx, "alice"); !errors.Is(err, entities.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound for different case, got %v", err)
	}

	user, err := repo.GetByUsername(ctx, "Alice")
	if err != nil {
		t.Fatalf("expected exact match to succeed, got %v", err)
	}
	if user.Username != "Alice" {
		t.Errorf("expected Alice, got %s", user.Username)
	}
}

func TestUserRepository_ListKeepsRegistrationOrder(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	repo := NewUserRepository(store)

	for _, u := range []entities.User{
		{Username: "carol", PasswordHash: "h1"},
		{Username: "alice", PasswordHash: "h2"},
		{Username: "bob", PasswordHash: "h3"},
	} {
		u := u
		if err := repo.Create(ctx, &u); err != nil {
			t.Fatal(err)
		}
	}

	users, err := repo.List(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if len(users) != 3 {
		t.Fatalf("expected 3 users, got %d", len(users))
	}
	if users[0].Username != "carol" || users[1].Username != "alice" || users[2].Username != "bob" {
		t.Errorf("expected registration order [carol, alice, bob], got %v", users)
	}
}

func TestTaskRepository_ListByOwnerKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	repo := NewTaskRepository(store)

	fixtures := []entities.Task{
		{ID: 3, Text: "first", Owner: "alice"},
		{ID: 1, Text: "second", Owner: "bob"},
		{ID: 2, Text: "third", Owner: "alice"},
	}
	for i := range fixtures {
		if err := repo.Create(ctx, &fixtures[i]); err != nil {
			t.Fatal(err)
		}
	}

	tasks, err := repo.ListByOwner(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}

	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks for alice, got %d", len(tasks))
	}
	if tasks[0].Text != "first" || tasks[1].Text != "third" {
		t.Errorf("expected insertion order [first, third], got [%s, %s]", tasks[0].Text, tasks[1].Text)
	}

	tasks, err = repo.ListByOwner(ctx, "carol")
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 0 {
		t.Errorf("expected no tasks for carol, got %d", len(tasks))
	}
}

func TestTaskRepository_Delete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	repo := NewTaskRepository(store)

	if err := repo.Create(ctx, &entities.Task{ID: 10, Text: "t", Owner: "alice"}); err != nil {
		t.Fatal(err)
	}

	if err := repo.Delete(ctx, 10); err != nil {
		t.Fatalf("delete existing: %v", err)
	}

	if err := repo.Delete(ctx, 10); !errors.Is(err, entities.ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound on second delete, got %v", err)
	}

	snap, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Tasks) != 0 {
		t.Errorf("expected no tasks left, got %d", len(snap.Tasks))
	}
}
