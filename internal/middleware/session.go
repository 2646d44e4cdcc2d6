// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/valuetrainer/internal/model"
)

// SessionCookieName はセッションIDを保持するCookieの名前。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// accountContextKey はリクエストコンテキストに認証済みアカウントを格納するためのキー。
var accountContextKey = contextKey("account")

// AccountResolver はセッションIDからアカウントを解決するインターフェース。
// auth.Serviceの部分集合として定義する。
type AccountResolver interface {
	CurrentAccount(ctx context.Context, sessionID string) (*model.Account, error)
}

// NewSessionMiddleware はHTTP Only CookieのセッションIDをアカウントに解決し、
// リクエストコンテキストに注入するミドルウェアを返す。
// 未認証リクエストはそのまま通過させる（認証必須ルートはRequireAccountで保護する）。
// セッションストアの障害時は500を返す。
func NewSessionMiddleware(resolver AccountResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := SessionIDFromRequest(r)
			if sessionID == "" {
				next.ServeHTTP(w, r)
				return
			}

			account, err := resolver.CurrentAccount(r.Context(), sessionID)
			if err != nil {
				slog.Error("failed to resolve session",
					slog.String("error", err.Error()),
				)
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}
			if account == nil {
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithAccount(r.Context(), account)))
		})
	}
}

// RequireAccount は認証済みアカウントがコンテキストに存在しないリクエストに
// 401 Unauthorizedを返すミドルウェア。NewSessionMiddlewareの後に配置する。
func RequireAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := AccountFromContext(r.Context()); !ok {
			WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SessionIDFromRequest はリクエストのCookieからセッションIDを取得する。
// Cookieが無い場合は空文字を返す。
func SessionIDFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// AccountFromContext はリクエストコンテキストから認証済みアカウントを取得する。
func AccountFromContext(ctx context.Context) (*model.Account, bool) {
	account, ok := ctx.Value(accountContextKey).(*model.Account)
	if !ok || account == nil {
		return nil, false
	}
	return account, true
}

// ContextWithAccount はコンテキストに認証済みアカウントを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithAccount(ctx context.Context, account *model.Account) context.Context {
	return context.WithValue(ctx, accountContextKey, account)
}
