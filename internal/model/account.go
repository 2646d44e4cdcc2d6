// Package model はドメインモデルを定義する。
package model

import "time"

// Account はサービス利用者のアカウントを表す。
// PasswordHashは一方向ハッシュのみを保持し、生のパスワードは保持しない。
type Account struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Session はアカウントのログインセッションを表す。
type Session struct {
	ID         string
	AccountID  string
	Persistent bool // remember me 指定時はブラウザ終了後も維持する
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

// FlashCategory はフラッシュメッセージの種別。
type FlashCategory string

const (
	FlashInfo  FlashCategory = "info"
	FlashError FlashCategory = "error"
)

// Flash は次に描画されるページで1回だけ表示される通知。
type Flash struct {
	Category FlashCategory `json:"category"`
	Message  string        `json:"message"`
}
