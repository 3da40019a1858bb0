package entities

import (
	"errors"
	"strings"
	"time"
)

// Common errors
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrDuplicateUser      = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrUserNotFound       = errors.New("user not found")
	ErrTaskNotFound       = errors.New("task not found")
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionExpired     = errors.New("session expired")
)

// User represents a registered account. The username is the primary key;
// accounts are never mutated or deleted after registration.
type User struct {
	Username     string `json:"username" db:"username"`
	PasswordHash string `json:"passwordHash" db:"password_hash"`
}

// Task represents a single to-do item owned by a user. The JSON field names
// (task, user) are the wire and on-disk format and must not change.
type Task struct {
	ID    int64  `json:"id" db:"id"`
	Text  string `json:"task" db:"body"`
	Owner string `json:"user" db:"owner"`
}

// Session is the server-side record behind an opaque cookie token. It holds
// only the username; the account record is re-resolved on each request so a
// session never observes stale credentials.
type Session struct {
	Token     string
	Username  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Snapshot is the whole-file aggregate persisted by the file store. Every
// storage operation loads and rewrites it in full.
type Snapshot struct {
	Users []User `json:"users"`
	Tasks []Task `json:"tasks"`
}

// Validate checks the invariants a registration must satisfy.
func (u *User) Validate() error {
	if strings.TrimSpace(u.Username) == "" || u.PasswordHash == "" {
		return ErrInvalidInput
	}
	return nil
}

// Validate checks the invariants a new task must satisfy.
func (t *Task) Validate() error {
	if strings.TrimSpace(t.Text) == "" {
		return ErrInvalidInput
	}
	if t.Owner == "" {
		return ErrUnauthorized
	}
	return nil
}

// OwnedBy reports whether the task belongs to the given user.
func (t *Task) OwnedBy(username string) bool {
	return t.Owner == username
}

// IsExpired reports whether the session has passed its expiry.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// FindUser returns the user with the exact, case-sensitive username.
func (snap *Snapshot) FindUser(username string) (*User, bool) {
	for i := range snap.Users {
		if snap.Users[i].Username == username {
			return &snap.Users[i], true
		}
	}
	return nil, false
}

// TasksFor returns the tasks owned by username in insertion order.
func (snap *Snapshot) TasksFor(username string) []Task {
	tasks := []Task{}
	for _, t := range snap.Tasks {
		if t.OwnedBy(username) {
			tasks = append(tasks, t)
		}
	}
	return tasks
}

// RemoveTask drops the task with the given id, if present, preserving the
// order of the remaining tasks. It reports whether a task was removed.
func (snap *Snapshot) RemoveTask(id int64) bool {
	filtered := snap.Tasks[:0]
	removed := false
	for _, t := range snap.Tasks {
		if t.ID == id {
			removed = true
			continue
		}
		filtered = append(filtered, t)
	}
	snap.Tasks = filtered
	return removed
}
