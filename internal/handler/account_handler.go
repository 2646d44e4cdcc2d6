package handler

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/valuetrainer/internal/middleware"
	"github.com/hitoshi/valuetrainer/internal/model"
)

// accountResponse は現在のアカウント情報のJSON表現。
type accountResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Me は現在のログインアカウント情報を返す。
// RequireAccountの後に配置するが、accountがnilの場合も401を返す。
// GET /api/me
func Me(w http.ResponseWriter, r *http.Request, account *model.Account) {
	if account == nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(accountResponse{
		ID:       account.ID,
		Username: account.Username,
		Email:    account.Email,
	})
}

// withAccount はコンテキストから解決済みアカウントを取り出し、
// 明示的な引数としてハンドラーに渡す。
func withAccount(fn AccountHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, _ := middleware.AccountFromContext(r.Context())
		fn(w, r, account)
	}
}
