// storage описывает контракт хранилища учётных записей и его ошибки.
// Реализации: postgres (основная) и memory (локальный запуск, тесты).
package storage

//go:generate mockgen -source=storage.go -destination=../../mocks/storage_mock.go -package=mocks

import (
	"context"
	"errors"
	"fmt"

	"github.com/pribylovaa/auth-session-service/internal/models"
)

var (
	// ErrNotFound - запись не найдена.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists - нарушение уникальности.
	ErrAlreadyExists = errors.New("already exists")
	// ErrUsernameTaken - имя пользователя уже занято.
	ErrUsernameTaken = fmt.Errorf("username taken: %w", ErrAlreadyExists)
	// ErrEmailTaken - e-mail уже занят.
	ErrEmailTaken = fmt.Errorf("email taken: %w", ErrAlreadyExists)
)

// UserStorage выполняет операции над пользователями.
type UserStorage interface {
	// CreateUser атомарно проверяет уникальность и создаёт пользователя.
	// Заполняет user.ID, CreatedAt и UpdatedAt.
	// Возвращает ErrUsernameTaken или ErrEmailTaken при конфликте.
	CreateUser(ctx context.Context, user *models.User) error
	// UserByUsername находит пользователя по имени (с учётом регистра).
	UserByUsername(ctx context.Context, username string) (*models.User, error)
	// UserByEmail находит пользователя по e-mail (без учёта регистра).
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	// UserByID находит пользователя по ID.
	UserByID(ctx context.Context, id int64) (*models.User, error)
}

// Storage задает контракт работы с хранилищем.
type Storage interface {
	UserStorage
	// Ping проверяет доступность хранилища (readiness).
	Ping(ctx context.Context) error
	Close()
}
