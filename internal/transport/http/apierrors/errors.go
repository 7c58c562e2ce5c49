// apierrors стандартизирует ответы об ошибках HTTP-слоя auth-сервиса.
// На вход принимает ошибку сервисного слоя, на выход даёт:
//   - корректный HTTP-статус;
//   - краткое безопасное message без утечки деталей.
//
// Ошибки сервиса сначала сводятся к коду gRPC (единый словарь кодов
// для всех транспортов), затем код маппится на HTTP.
package apierrors

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/pribylovaa/auth-session-service/internal/service"
)

// Нестандартный код часто используемый для "клиент закрыл соединение".
const StatusClientClosedRequest = 499

// APIError - единый формат ошибки для клиента.
// Code - короткий стабильный машиночитаемый код.
// Message - безопасное человекочитаемое описание.
// RequestID - прокидывается из X-Request-Id, если есть.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse - корневой объект в ответе.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// CodeOf сводит ошибку к коду gRPC.
//
//   - ErrInvalidInput -> InvalidArgument;
//   - ErrConflict -> AlreadyExists;
//   - ErrUnauthorized -> Unauthenticated;
//   - ErrNotFound -> NotFound;
//   - ErrStoreUnavailable -> Unavailable;
//   - context.Canceled / DeadlineExceeded -> Canceled / DeadlineExceeded;
//   - уже готовый gRPC-статус возвращается как есть;
//   - прочее -> Internal.
func CodeOf(err error) codes.Code {
	switch {
	case err == nil:
		return codes.Internal
	case errors.Is(err, service.ErrInvalidInput):
		return codes.InvalidArgument
	case errors.Is(err, service.ErrConflict):
		return codes.AlreadyExists
	case errors.Is(err, service.ErrUnauthorized):
		return codes.Unauthenticated
	case errors.Is(err, service.ErrNotFound):
		return codes.NotFound
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, service.ErrStoreUnavailable):
		return codes.Unavailable
	}

	if st, ok := status.FromError(err); ok {
		return st.Code()
	}

	return codes.Internal
}

// ToHTTP конвертирует ошибку в HTTP-статус и унифицированный ответ.
// err == nil - программная ошибка вызова: отдаём 500/internal,
// чтобы не послать тело ошибки со статусом 200.
func ToHTTP(err error) (int, ErrorResponse) {
	httpStatus, code, msg := baseFromGRPC(CodeOf(err))

	return httpStatus, ErrorResponse{
		Error: APIError{
			Code:    code,
			Message: msg,
		},
	}
}

// WriteError - хелпер для HTTP-хендлеров.
// Пишет статус и тело, добавляет request_id из заголовка, если он есть.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)

	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.Error.RequestID = rid
	}

	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="auth"`)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// baseFromGRPC - маппинг gRPC -> HTTP/код/сообщение.
func baseFromGRPC(c codes.Code) (int, string, string) {
	switch c {
	case codes.InvalidArgument:
		return http.StatusBadRequest, "invalid_argument", "invalid argument"
	case codes.NotFound:
		return http.StatusNotFound, "not_found", "not found"
	case codes.AlreadyExists:
		return http.StatusConflict, "already_exists", "already exists"
	case codes.Unauthenticated:
		return http.StatusUnauthorized, "unauthenticated", "unauthenticated"
	case codes.PermissionDenied:
		return http.StatusForbidden, "permission_denied", "permission denied"
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests, "resource_exhausted", "resource exhausted"
	case codes.Canceled:
		return StatusClientClosedRequest, "canceled", "canceled"
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout, "deadline_exceeded", "deadline exceeded"
	case codes.Unavailable:
		return http.StatusServiceUnavailable, "unavailable", "service unavailable"
	case codes.Unimplemented:
		return http.StatusNotImplemented, "unimplemented", "unimplemented"
	default:
		return http.StatusInternalServerError, "internal", "internal error"
	}
}
