package handler

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/hitoshi/valuetrainer/internal/middleware"
	"github.com/hitoshi/valuetrainer/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

// ページテンプレート名
const (
	pageIndex    = "index.html"
	pageLogin    = "login.html"
	pageSignup   = "signup.html"
	pageExercise = "exercise.html"
)

// pageData はテンプレートに渡す表示データ。
type pageData struct {
	Title     string
	Account   *model.Account
	Flashes   []model.Flash
	CSRFToken string
	Form      any
	Errors    FormErrors
}

// Renderer は埋め込みテンプレートからHTMLページを描画する。
// 各ページはbase.htmlのレイアウトと組み合わせて事前にパースする。
type Renderer struct {
	pages   map[string]*template.Template
	flashes *FlashStore
}

// NewRenderer は全ページテンプレートをパースしてRendererを生成する。
func NewRenderer(flashes *FlashStore) (*Renderer, error) {
	pages := make(map[string]*template.Template)
	for _, page := range []string{pageIndex, pageLogin, pageSignup, pageExercise} {
		tmpl, err := template.New(page).ParseFS(templateFS, "templates/base.html", "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", page, err)
		}
		pages[page] = tmpl
	}

	return &Renderer{
		pages:   pages,
		flashes: flashes,
	}, nil
}

// Render はページを描画してステータスコードとともに書き込む。
// フラッシュメッセージとCSRFトークンはリクエストから補完する。
func (rd *Renderer) Render(w http.ResponseWriter, r *http.Request, status int, page string, data pageData) {
	tmpl, ok := rd.pages[page]
	if !ok {
		slog.Error("unknown template", slog.String("page", page))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	data.Flashes = rd.flashes.Pop(w, r)
	data.CSRFToken = middleware.CSRFTokenFromContext(r.Context())

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		slog.Error("failed to render template",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
