package handler

import (
	_ "embed"
	"net/http"
	"net/url"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/valuetrainer/internal/middleware"
	"github.com/hitoshi/valuetrainer/internal/model"
	"github.com/hitoshi/valuetrainer/internal/security"
)

// exerciseScriptName は練習ページが読み込むバンドル済みスクリプトのファイル名。
const exerciseScriptName = "vs.js"

// exerciseInitScript は #exercise 要素に名前付きの練習を開始する起動スクリプト。
//
//go:embed static/exercise-init.js
var exerciseInitScript []byte

// AccountHandlerFunc は解決済みのアカウントを明示的に受け取るハンドラー。
// 未認証の場合accountはnil。
type AccountHandlerFunc func(w http.ResponseWriter, r *http.Request, account *model.Account)

// PageHandler はトップページ、練習ページ、スクリプト配信のHTTPハンドラー。
type PageHandler struct {
	renderer    *Renderer
	sanitizer   security.TextSanitizerService
	staticJSDir string
}

// NewPageHandler はPageHandlerを生成する。
func NewPageHandler(renderer *Renderer, sanitizer security.TextSanitizerService, staticJSDir string) *PageHandler {
	return &PageHandler{
		renderer:    renderer,
		sanitizer:   sanitizer,
		staticJSDir: staticJSDir,
	}
}

// Index はトップページを表示する。
// GET / , GET /index
func (h *PageHandler) Index(w http.ResponseWriter, r *http.Request, account *model.Account) {
	h.renderer.Render(w, r, http.StatusOK, pageIndex, pageData{
		Title:   "Home",
		Account: account,
	})
}

// Exercise は名前付きの練習ページを表示する。
// 名前は検証も検索もせず、マークアップを除去してタイトルとして表示する。
// GET /exercise/{name}
func (h *PageHandler) Exercise(w http.ResponseWriter, r *http.Request, account *model.Account) {
	name := h.sanitizer.SanitizeText(pathParam(r, "name"))
	// 開発ビルドのバンドルはevalを使うため、このページのみ許可する
	w.Header().Set("Content-Security-Policy", middleware.ExercisePageContentSecurityPolicy)
	h.renderer.Render(w, r, http.StatusOK, pageExercise, pageData{
		Title:   name,
		Account: account,
	})
}

// ExerciseScript は固定ディレクトリからバンドル済みスクリプトを配信する。
// GET /js/vs.js
func (h *PageHandler) ExerciseScript(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	http.ServeFile(w, r, filepath.Join(h.staticJSDir, exerciseScriptName))
}

// ExerciseInitScript は練習ページの起動スクリプトを配信する。
// GET /js/exercise-init.js
func (h *PageHandler) ExerciseInitScript(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.Write(exerciseInitScript)
}

// pathParam はURLパラメータをデコード済みの値で返す。
// chiはRawPathが設定されている場合のみエスケープされたままの値を返すため、その場合に限りデコードする。
func pathParam(r *http.Request, key string) string {
	value := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return value
	}
	if unescaped, err := url.PathUnescape(value); err == nil {
		return unescaped
	}
	return value
}
