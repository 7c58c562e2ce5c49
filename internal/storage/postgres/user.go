package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pribylovaa/auth-session-service/internal/models"
	"github.com/pribylovaa/auth-session-service/internal/storage"
)

// Пространства ключей advisory-блокировок регистрации.
// Порядок захвата фиксирован: сначала username, затем email.
const (
	lockNSUsername = 1
	lockNSEmail    = 2
)

// Имена ограничений уникальности из миграции.
const (
	usernameConstraint = "users_username_key"
	emailConstraint    = "users_email_lower_key"
)

const userColumns = `id, username, email, password_hash, created_at, updated_at`

// CreateUser создает нового пользователя в одной транзакции:
// блокировки по username/email, проверка занятости, вставка.
// Уникальные ограничения таблицы остаются последним рубежом.
func (s *Storage) CreateUser(ctx context.Context, user *models.User) error {
	const op = "storage.postgres.CreateUser"

	err := s.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`SELECT pg_advisory_xact_lock($1, hashtext($2))`, lockNSUsername, user.Username,
		); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`SELECT pg_advisory_xact_lock($1, hashtext(lower($2)))`, lockNSEmail, user.Email,
		); err != nil {
			return err
		}

		taken, err := exists(ctx, tx, `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`, user.Username)
		if err != nil {
			return err
		}
		if taken {
			return storage.ErrUsernameTaken
		}

		taken, err = exists(ctx, tx, `SELECT EXISTS(SELECT 1 FROM users WHERE lower(email) = lower($1))`, user.Email)
		if err != nil {
			return err
		}
		if taken {
			return storage.ErrEmailTaken
		}

		return tx.QueryRow(ctx, `
			INSERT INTO users(username, email, password_hash)
			VALUES ($1, $2, $3)
			RETURNING id, created_at, updated_at
		`, user.Username, user.Email, user.PasswordHash).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	})

	if err != nil {
		return fmt.Errorf("%s: %w", op, mapUniqueViolation(err))
	}

	return nil
}

// UserByUsername находит пользователя по имени.
func (s *Storage) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	const op = "storage.postgres.UserByUsername"

	user, err := scanUser(s.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// UserByEmail находит пользователя по email.
func (s *Storage) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.postgres.UserByEmail"

	user, err := scanUser(s.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// UserByID находит пользователя по ID.
func (s *Storage) UserByID(ctx context.Context, id int64) (*models.User, error) {
	const op = "storage.postgres.UserByID"

	user, err := scanUser(s.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}

		return nil, err
	}

	user.CreatedAt = user.CreatedAt.UTC()
	user.UpdatedAt = user.UpdatedAt.UTC()

	return &user, nil
}

func exists(ctx context.Context, tx pgx.Tx, query string, arg any) (bool, error) {
	var ok bool
	if err := tx.QueryRow(ctx, query, arg).Scan(&ok); err != nil {
		return false, err
	}

	return ok, nil
}

// mapUniqueViolation переводит нарушение уникальности в ошибку storage
// по имени ограничения.
func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return err
	}

	switch pgErr.ConstraintName {
	case usernameConstraint:
		return storage.ErrUsernameTaken
	case emailConstraint:
		return storage.ErrEmailTaken
	default:
		return storage.ErrAlreadyExists
	}
}
