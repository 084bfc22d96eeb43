// Package middleware содержит HTTP middleware админ-API купонного сервиса.
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// TokenAuth пропускает только запросы с настроенным bearer-токеном оператора.
type TokenAuth struct {
	token string
}

// NewTokenAuth создаёт middleware с указанным токеном.
func NewTokenAuth(token string) *TokenAuth {
	return &TokenAuth{token: token}
}

// Middleware проверяет заголовок Authorization: Bearer <token>.
func (a *TokenAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.token == "" {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}

		header := r.Header.Get("Authorization")
		got, found := strings.CutPrefix(header, "Bearer ")
		if !found || subtle.ConstantTimeCompare([]byte(got), []byte(a.token)) != 1 {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}
