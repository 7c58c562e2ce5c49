// handlers содержит HTTP-эндпоинты auth-сервиса.
// Здесь выполняется только разбор запроса, маппинг ответа и ошибок;
// вся валидация и бизнес-логика находятся в пакете service.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/pribylovaa/auth-session-service/internal/models"
	"github.com/pribylovaa/auth-session-service/internal/service"
)

// maxBodyBytes ограничивает тело запроса.
const maxBodyBytes = 64 << 10

// Auth - операции координатора, доступные транспорту.
type Auth interface {
	Register(ctx context.Context, username, email, password string) (*models.Profile, error)
	Login(ctx context.Context, username, password string) (*models.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*models.AccessGrant, error)
	GetProfile(ctx context.Context, userID int64) (*models.Profile, error)
	Logout(ctx context.Context, userID int64) error
	Authenticate(ctx context.Context, accessToken string) (int64, error)
}

// Pinger - зависимость, доступность которой проверяет /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers агрегирует зависимости хендлеров.
type Handlers struct {
	auth   Auth
	checks map[string]Pinger
}

// New создаёт хендлеры. checks - именованные зависимости для /healthz.
func New(auth Auth, checks map[string]Pinger) *Handlers {
	return &Handlers{auth: auth, checks: checks}
}

// writeJSON - единый ответ JSON с нужным Content-Type.
// Ошибки выводим через apierrors.WriteError.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// decodeStrict - строгий JSON-декодер: запрещаем неизвестные поля
// и хвост после объекта. Любая ошибка разбора - ErrInvalidInput.
func decodeStrict(w http.ResponseWriter, r *http.Request, value any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(value); err != nil {
		return fmt.Errorf("decode body: %w: %w", service.ErrInvalidInput, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode body: trailing data: %w", service.ErrInvalidInput)
	}

	return nil
}
