// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/valuetrainer/internal/auth"
	"github.com/hitoshi/valuetrainer/internal/metrics"
	"github.com/hitoshi/valuetrainer/internal/middleware"
	"github.com/hitoshi/valuetrainer/internal/model"
)

// フラッシュメッセージ
const (
	flashInvalidCredentials = "Invalid username or password"
	flashSignupSuccess      = "Success!"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Login(ctx context.Context, username, password string, remember bool) (*model.Session, error)
	Signup(ctx context.Context, username, email, password string) (*model.Account, error)
	Logout(ctx context.Context, sessionID string) error
}

var _ AuthServiceInterface = (*auth.Service)(nil)

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	Cookie         CookieConfig
	RememberMaxAge int // remember me 指定時のセッションCookieの有効期間（秒）
}

// AuthHandler はログイン・アカウント登録・ログアウトのHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	renderer *Renderer
	flashes  *FlashStore
	metrics  metrics.MetricsCollector
	config   AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(
	service AuthServiceInterface,
	renderer *Renderer,
	flashes *FlashStore,
	collector metrics.MetricsCollector,
	config AuthHandlerConfig,
) *AuthHandler {
	return &AuthHandler{
		service:  service,
		renderer: renderer,
		flashes:  flashes,
		metrics:  collector,
		config:   config,
	}
}

// ShowLogin はログインフォームを表示する。
// GET /login
func (h *AuthHandler) ShowLogin(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, r, http.StatusOK, pageLogin, pageData{Title: "Sign In"})
}

// SubmitLogin はログインフォームを処理する。
// POST /login
func (h *AuthHandler) SubmitLogin(w http.ResponseWriter, r *http.Request) {
	form, errs := parseLoginForm(r)
	if len(errs) > 0 {
		h.metrics.RecordLogin(metrics.OutcomeInvalid)
		h.renderer.Render(w, r, http.StatusUnprocessableEntity, pageLogin, pageData{
			Title:  "Sign In",
			Form:   LoginForm{Username: form.Username, RememberMe: form.RememberMe},
			Errors: errs,
		})
		return
	}

	session, err := h.service.Login(r.Context(), form.Username, form.Password, form.RememberMe)
	if err != nil {
		if errors.Is(err, model.ErrInvalidCredentials) {
			h.metrics.RecordLogin(metrics.OutcomeFailure)
			h.flashes.Add(w, r, model.FlashError, flashInvalidCredentials)
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		slog.Error("failed to login", slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordLogin(metrics.OutcomeSuccess)
	h.setSessionCookie(w, session)
	http.Redirect(w, r, "/index", http.StatusSeeOther)
}

// ShowSignup はアカウント登録フォームを表示する。
// GET /signup
func (h *AuthHandler) ShowSignup(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, r, http.StatusOK, pageSignup, pageData{Title: "Sign Up"})
}

// SubmitSignup はアカウント登録フォームを処理する。
// POST /signup
func (h *AuthHandler) SubmitSignup(w http.ResponseWriter, r *http.Request) {
	form, errs := parseSignupForm(r)
	if len(errs) > 0 {
		h.metrics.RecordSignup(metrics.OutcomeInvalid)
		h.renderSignupForm(w, r, http.StatusUnprocessableEntity, form, errs)
		return
	}

	if _, err := h.service.Signup(r.Context(), form.Username, form.Email, form.Password); err != nil {
		if errors.Is(err, model.ErrUsernameTaken) {
			h.metrics.RecordSignup(metrics.OutcomeConflict)
			h.renderSignupForm(w, r, http.StatusConflict, form, FormErrors{
				"username": "Please use a different username.",
			})
			return
		}
		slog.Error("failed to sign up", slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordSignup(metrics.OutcomeSuccess)
	h.flashes.Add(w, r, model.FlashInfo, flashSignupSuccess)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// Logout はセッションを破棄してトップページへリダイレクトする。
// GET /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request, account *model.Account) {
	if sessionID := middleware.SessionIDFromRequest(r); sessionID != "" {
		if err := h.service.Logout(r.Context(), sessionID); err != nil {
			// ログアウト失敗してもCookieはクリアする
			slog.Error("failed to logout", slog.String("error", err.Error()))
		} else if account != nil {
			h.metrics.RecordLogout()
		}
	}

	h.clearSessionCookie(w)
	http.Redirect(w, r, "/index", http.StatusSeeOther)
}

// renderSignupForm はパスワードを除いた入力値でアカウント登録フォームを再表示する。
func (h *AuthHandler) renderSignupForm(w http.ResponseWriter, r *http.Request, status int, form SignupForm, errs FormErrors) {
	h.renderer.Render(w, r, status, pageSignup, pageData{
		Title:  "Sign Up",
		Form:   SignupForm{Username: form.Username, Email: form.Email},
		Errors: errs,
	})
}

// setSessionCookie はセッションCookieを設定する（HTTP Only）。
// 永続セッションのみMax-Ageを付与し、それ以外はブラウザセッションCookieとする。
func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, session *model.Session) {
	maxAge := 0
	if session.Persistent {
		maxAge = h.config.RememberMaxAge
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    session.ID,
		Path:     "/",
		Domain:   h.config.Cookie.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.config.Cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.Cookie.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.Cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// GateAuthForms は認証済みのリクエストをログイン・アカウント登録画面から
// トップページへリダイレクトするミドルウェア。
// フォームの解析、CSRF検証、レート制限より前に配置する。
func GateAuthForms(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, authenticated := middleware.AccountFromContext(r.Context())
		if auth.Gate(authenticated) == auth.GateRedirectIndex {
			http.Redirect(w, r, "/index", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}
