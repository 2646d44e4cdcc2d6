package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/valuetrainer/internal/model"
)

const (
	flashCookieName = "flash"

	// maxFlashes はCookieに積み上げるフラッシュメッセージの上限。
	maxFlashes = 5
)

// CookieConfig はハンドラーが発行するCookieの共通設定。
type CookieConfig struct {
	Secure bool
	Domain string
}

// FlashStore はHMAC署名付きCookieでフラッシュメッセージを次のページ表示まで運ぶ。
// 署名鍵にはSESSION_SECRETを使用し、改ざんされたCookieは破棄する。
type FlashStore struct {
	secret []byte
	cookie CookieConfig
}

// NewFlashStore はFlashStoreを生成する。
func NewFlashStore(secret string, cookie CookieConfig) *FlashStore {
	return &FlashStore{
		secret: []byte(secret),
		cookie: cookie,
	}
}

// Add はフラッシュメッセージを追加する。
// リクエストに既存のメッセージがあれば後ろに積む。
func (s *FlashStore) Add(w http.ResponseWriter, r *http.Request, category model.FlashCategory, message string) {
	flashes := append(s.read(r), model.Flash{Category: category, Message: message})
	if len(flashes) > maxFlashes {
		flashes = flashes[len(flashes)-maxFlashes:]
	}

	payload, err := json.Marshal(flashes)
	if err != nil {
		slog.Error("failed to encode flash", slog.String("error", err.Error()))
		return
	}

	encoded := base64.RawURLEncoding.EncodeToString(payload)
	http.SetCookie(w, s.newCookie(encoded+"."+s.sign(encoded), 0))
}

// Pop はフラッシュメッセージを取り出し、Cookieを削除する。
// メッセージが無い場合はnilを返す。
func (s *FlashStore) Pop(w http.ResponseWriter, r *http.Request) []model.Flash {
	if _, err := r.Cookie(flashCookieName); err != nil {
		return nil
	}

	flashes := s.read(r)
	http.SetCookie(w, s.newCookie("", -1))
	return flashes
}

// read はリクエストのCookieを検証してメッセージを復元する。
// 署名不一致や形式不正の場合はnilを返す。
func (s *FlashStore) read(r *http.Request) []model.Flash {
	cookie, err := r.Cookie(flashCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}

	encoded, signature, ok := strings.Cut(cookie.Value, ".")
	if !ok {
		return nil
	}
	if !hmac.Equal([]byte(signature), []byte(s.sign(encoded))) {
		slog.Warn("flash cookie signature mismatch")
		return nil
	}

	payload, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil
	}

	var flashes []model.Flash
	if err := json.Unmarshal(payload, &flashes); err != nil {
		return nil
	}
	return flashes
}

// sign はエンコード済みペイロードのHMAC-SHA256署名を返す。
func (s *FlashStore) sign(encoded string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(encoded))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (s *FlashStore) newCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     flashCookieName,
		Value:    value,
		Path:     "/",
		Domain:   s.cookie.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
