// memory - потокобезопасная реализация storage.Storage в памяти процесса.
// Используется драйвером "memory" для локального запуска и в тестах.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pribylovaa/auth-session-service/internal/models"
	"github.com/pribylovaa/auth-session-service/internal/storage"
)

type Storage struct {
	mu         sync.RWMutex
	seq        int64
	byID       map[int64]models.User
	byUsername map[string]int64
	byEmail    map[string]int64

	now func() time.Time
}

// New создаёт пустое хранилище.
func New() *Storage {
	return &Storage{
		byID:       make(map[int64]models.User),
		byUsername: make(map[string]int64),
		byEmail:    make(map[string]int64),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// CreateUser проверяет уникальность и вставляет запись под одной блокировкой.
func (s *Storage) CreateUser(ctx context.Context, user *models.User) error {
	const op = "storage.memory.CreateUser"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	emailKey := strings.ToLower(user.Email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byUsername[user.Username]; ok {
		return fmt.Errorf("%s: %w", op, storage.ErrUsernameTaken)
	}
	if _, ok := s.byEmail[emailKey]; ok {
		return fmt.Errorf("%s: %w", op, storage.ErrEmailTaken)
	}

	s.seq++
	now := s.now()
	user.ID = s.seq
	user.CreatedAt = now
	user.UpdatedAt = now

	s.byID[user.ID] = *user
	s.byUsername[user.Username] = user.ID
	s.byEmail[emailKey] = user.ID

	return nil
}

// UserByUsername находит пользователя по имени.
func (s *Storage) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	const op = "storage.memory.UserByUsername"

	s.mu.RLock()
	id, ok := s.byUsername[username]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return s.UserByID(ctx, id)
}

// UserByEmail находит пользователя по e-mail без учёта регистра.
func (s *Storage) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.memory.UserByEmail"

	s.mu.RLock()
	id, ok := s.byEmail[strings.ToLower(email)]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return s.UserByID(ctx, id)
}

// UserByID находит пользователя по ID. Возвращается копия записи.
func (s *Storage) UserByID(ctx context.Context, id int64) (*models.User, error) {
	const op = "storage.memory.UserByID"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.RLock()
	u, ok := s.byID[id]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return &u, nil
}

// Ping всегда успешен.
func (s *Storage) Ping(context.Context) error { return nil }

func (s *Storage) Close() {}

var _ storage.Storage = (*Storage)(nil)
