package middleware

import (
	"context"
	"net/http"
	"strings"
)

// AuthBearer извлекает Bearer-токен из Authorization и кладёт "сырой" токен
// в контекст; достать его можно через BearerToken. Проверку токена
// выполняют хендлеры: для разных маршрутов ожидается разный вид токена.
func AuthBearer() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")

			const prefix = "Bearer "
			if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
				token := strings.TrimSpace(auth[len(prefix):])

				if token != "" {
					ctx := context.WithValue(r.Context(), ctxAuthToken, token)
					r = r.WithContext(ctx)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
