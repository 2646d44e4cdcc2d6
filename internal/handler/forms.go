package handler

import (
	"net/http"
	"net/mail"
	"strings"
	"unicode/utf8"
)

const (
	maxUsernameLength = 64
	maxEmailLength    = 255

	// maxPasswordBytes はbcryptが扱える最大バイト長。
	maxPasswordBytes = 72
)

// FormErrors はフィールド名をキーとしたバリデーションエラー。
type FormErrors map[string]string

// LoginForm はログインフォームの入力値。
type LoginForm struct {
	Username   string
	Password   string
	RememberMe bool
}

// SignupForm はアカウント登録フォームの入力値。
type SignupForm struct {
	Username  string
	Email     string
	Password  string
	Password2 string
}

// parseLoginForm はリクエストからログインフォームを読み取り検証する。
func parseLoginForm(r *http.Request) (LoginForm, FormErrors) {
	form := LoginForm{
		Username:   r.PostFormValue("username"),
		Password:   r.PostFormValue("password"),
		RememberMe: isChecked(r.PostFormValue("remember_me")),
	}

	errs := FormErrors{}
	if isBlank(form.Username) {
		errs["username"] = "This field is required."
	}
	if isBlank(form.Password) {
		errs["password"] = "This field is required."
	}
	return form, errs
}

// parseSignupForm はリクエストからアカウント登録フォームを読み取り検証する。
func parseSignupForm(r *http.Request) (SignupForm, FormErrors) {
	form := SignupForm{
		Username:  r.PostFormValue("username"),
		Email:     strings.TrimSpace(r.PostFormValue("email")),
		Password:  r.PostFormValue("password"),
		Password2: r.PostFormValue("password2"),
	}

	errs := FormErrors{}

	switch {
	case isBlank(form.Username):
		errs["username"] = "This field is required."
	case utf8.RuneCountInString(form.Username) > maxUsernameLength:
		errs["username"] = "Username must be at most 64 characters."
	}

	switch {
	case form.Email == "":
		errs["email"] = "This field is required."
	case len(form.Email) > maxEmailLength || !isEmailAddress(form.Email):
		errs["email"] = "Invalid email address."
	}

	switch {
	case isBlank(form.Password):
		errs["password"] = "This field is required."
	case len(form.Password) > maxPasswordBytes:
		errs["password"] = "Password is too long."
	}

	switch {
	case isBlank(form.Password2):
		errs["password2"] = "This field is required."
	case form.Password2 != form.Password:
		errs["password2"] = "Passwords must match."
	}

	return form, errs
}

// isEmailAddress は表示名を含まない素のメールアドレスかどうかを判定する。
func isEmailAddress(s string) bool {
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return false
	}
	return addr.Address == s && addr.Name == ""
}

// isChecked はチェックボックスの送信値を真偽値に変換する。
func isChecked(v string) bool {
	return v != "" && v != "false"
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
