// service содержит бизнес-логику auth-сервиса: регистрацию и вход,
// выпуск access-токенов по refresh-токену, чтение профиля и выход.
//
// Основные аспекты:
//   - Service не хранит состояние запроса и безопасен для конкурентного
//     использования, если безопасны переданные хранилище и кэш;
//   - хранилище учётных записей - источник истины, кэш профилей - ускоритель
//     (cache-aside), дескриптор отзыва в кэше - единственный признак активности
//     refresh-токена;
//   - ошибки возвращаются обёрнутыми в сентинелы ниже и маппятся транспортом
//     на коды ответа.
package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/pribylovaa/auth-session-service/internal/cache"
	"github.com/pribylovaa/auth-session-service/internal/config"
	"github.com/pribylovaa/auth-session-service/internal/metrics"
	"github.com/pribylovaa/auth-session-service/internal/models"
	"github.com/pribylovaa/auth-session-service/internal/storage"
)

var (
	// ErrInvalidInput - отсутствует обязательное поле или значение не проходит валидацию.
	// Транспорт: codes.InvalidArgument (HTTP 400).
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidUsername - имя пользователя вне допустимой длины.
	ErrInvalidUsername = fmt.Errorf("invalid username: %w", ErrInvalidInput)
	// ErrInvalidEmail - e-mail имеет некорректный формат.
	ErrInvalidEmail = fmt.Errorf("invalid email format: %w", ErrInvalidInput)
	// ErrWeakPassword - пароль короче минимальной длины.
	ErrWeakPassword = fmt.Errorf("password is too weak: %w", ErrInvalidInput)
	// ErrPasswordTooLong - пароль длиннее maxPasswordBytes байт.
	ErrPasswordTooLong = fmt.Errorf("password is too long: %w", ErrInvalidInput)

	// ErrConflict - нарушение уникальности учётной записи.
	// Транспорт: codes.AlreadyExists (HTTP 409).
	ErrConflict = errors.New("conflict")
	// ErrUsernameTaken - имя пользователя занято.
	ErrUsernameTaken = fmt.Errorf("username already taken: %w", ErrConflict)
	// ErrEmailTaken - e-mail занят.
	ErrEmailTaken = fmt.Errorf("email already taken: %w", ErrConflict)

	// ErrUnauthorized - учётные данные или токен не приняты.
	// Транспорт: codes.Unauthenticated (HTTP 401).
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials - неизвестный пользователь или неверный пароль;
	// оба случая намеренно неразличимы.
	ErrInvalidCredentials = fmt.Errorf("invalid credentials: %w", ErrUnauthorized)
	// ErrInvalidToken - токен не проходит проверку подписи, срока или вида.
	ErrInvalidToken = fmt.Errorf("invalid token: %w", ErrUnauthorized)
	// ErrTokenRevoked - дескриптор отзыва отсутствует или не совпадает с токеном.
	ErrTokenRevoked = fmt.Errorf("token revoked: %w", ErrUnauthorized)

	// ErrNotFound - пользователь не найден.
	// Транспорт: codes.NotFound (HTTP 404).
	ErrNotFound = errors.New("not found")

	// ErrStoreUnavailable - хранилище или кэш вернули ошибку.
	// Транспорт: codes.Unavailable (HTTP 503).
	ErrStoreUnavailable = errors.New("store unavailable")
)

// PasswordHasher - контракт хэширования паролей.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, digest string) bool
	// VerifyDummy выравнивает время ответа для неизвестного пользователя.
	VerifyDummy(plain string)
}

// TokenIssuer - контракт выпуска и проверки токенов.
type TokenIssuer interface {
	IssueAccess(userID int64) (string, time.Time, error)
	IssueRefresh(userID int64) (string, time.Time, error)
	Validate(token string, kind models.TokenKind) (int64, error)
}

// Service описывает бизнес-логику auth-сервиса.
type Service struct {
	storage storage.UserStorage
	cache   cache.SessionCache
	hasher  PasswordHasher
	tokens  TokenIssuer
	keys    cache.Keys

	profileTTL    time.Duration
	revocationTTL time.Duration

	metrics *metrics.Metrics
}

// Option настраивает Service.
type Option func(*Service)

// WithMetrics подключает Prometheus-метрики.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New создаёт новый экземпляр Service.
// Клиент кэша создаётся и закрывается вызывающей стороной.
func New(
	st storage.UserStorage,
	c cache.SessionCache,
	hasher PasswordHasher,
	tokens TokenIssuer,
	cfg config.CacheConfig,
	opts ...Option,
) *Service {
	s := &Service{
		storage:       st,
		cache:         c,
		hasher:        hasher,
		tokens:        tokens,
		keys:          cache.Keys{Prefix: cfg.KeyPrefix},
		profileTTL:    cfg.ProfileTTL,
		revocationTTL: cfg.RevocationTTL,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// unavailable помечает сбой хранилища или кэша, сохраняя причину в цепочке.
func unavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

// resultOf классифицирует ошибку для метрик.
func resultOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrStoreUnavailable):
		return "unavailable"
	default:
		return "internal"
	}
}

func (s *Service) observe(op string, err error) {
	s.metrics.Operation(op, resultOf(err))
}
