// requestid.go — middleware присвоения идентификатора запроса.
package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// requestIDHeader — заголовок, через который клиент может передать
// собственный идентификатор запроса.
const requestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// RequestID присваивает каждому запросу уникальный идентификатор.
// Если клиент передал X-Request-ID, используется он; иначе
// генерируется новый UUID. Идентификатор кладётся в контекст
// и возвращается в заголовке ответа.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(requestIDHeader)
			if id == "" {
				id = uuid.NewString()
			}

			w.Header().Set(requestIDHeader, id)

			ctx := context.WithValue(r.Context(), requestIDKey{}, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDFromContext возвращает идентификатор запроса из контекста
// или пустую строку, если middleware не применялся.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
