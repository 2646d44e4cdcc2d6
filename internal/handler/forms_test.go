package handler

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func newPostFormRequest(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestParseLoginForm(t *testing.T) {
	tests := []struct {
		name         string
		form         url.Values
		wantErrors   []string
		wantRemember bool
	}{
		{
			name:       "valid without remember",
			form:       url.Values{"username": {"alice"}, "password": {"pw1"}},
			wantErrors: nil,
		},
		{
			name:         "valid with remember",
			form:         url.Values{"username": {"alice"}, "password": {"pw1"}, "remember_me": {"y"}},
			wantRemember: true,
		},
		{
			name:       "missing username",
			form:       url.Values{"password": {"pw1"}},
			wantErrors: []string{"username"},
		},
		{
			name:       "blank fields",
			form:       url.Values{"username": {"   "}, "password": {""}},
			wantErrors: []string{"username", "password"},
		},
		{
			name:         "remember false value",
			form:         url.Values{"username": {"alice"}, "password": {"pw1"}, "remember_me": {"false"}},
			wantRemember: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form, errs := parseLoginForm(newPostFormRequest("/login", tt.form))

			if len(errs) != len(tt.wantErrors) {
				t.Fatalf("errors = %v, want fields %v", errs, tt.wantErrors)
			}
			for _, field := range tt.wantErrors {
				if _, ok := errs[field]; !ok {
					t.Errorf("expected error for %q, got %v", field, errs)
				}
			}
			if form.RememberMe != tt.wantRemember {
				t.Errorf("RememberMe = %v, want %v", form.RememberMe, tt.wantRemember)
			}
		})
	}
}

func TestParseSignupForm(t *testing.T) {
	valid := func() url.Values {
		return url.Values{
			"username":  {"alice"},
			"email":     {"a@x.com"},
			"password":  {"pw1"},
			"password2": {"pw1"},
		}
	}

	tests := []struct {
		name       string
		mutate     func(url.Values)
		wantErrors []string
	}{
		{
			name:   "valid",
			mutate: func(v url.Values) {},
		},
		{
			name:       "missing email",
			mutate:     func(v url.Values) { v.Del("email") },
			wantErrors: []string{"email"},
		},
		{
			name:       "malformed email",
			mutate:     func(v url.Values) { v.Set("email", "not-an-email") },
			wantErrors: []string{"email"},
		},
		{
			name:       "email with display name",
			mutate:     func(v url.Values) { v.Set("email", "Alice <a@x.com>") },
			wantErrors: []string{"email"},
		},
		{
			name:       "password mismatch",
			mutate:     func(v url.Values) { v.Set("password2", "pw2") },
			wantErrors: []string{"password2"},
		},
		{
			name:       "username too long",
			mutate:     func(v url.Values) { v.Set("username", strings.Repeat("a", maxUsernameLength+1)) },
			wantErrors: []string{"username"},
		},
		{
			name: "password over bcrypt limit",
			mutate: func(v url.Values) {
				long := strings.Repeat("p", maxPasswordBytes+1)
				v.Set("password", long)
				v.Set("password2", long)
			},
			wantErrors: []string{"password"},
		},
		{
			name:       "everything missing",
			mutate:     func(v url.Values) { v.Del("username"); v.Del("email"); v.Del("password"); v.Del("password2") },
			wantErrors: []string{"username", "email", "password", "password2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := valid()
			tt.mutate(values)

			_, errs := parseSignupForm(newPostFormRequest("/signup", values))

			if len(errs) != len(tt.wantErrors) {
				t.Fatalf("errors = %v, want fields %v", errs, tt.wantErrors)
			}
			for _, field := range tt.wantErrors {
				if _, ok := errs[field]; !ok {
					t.Errorf("expected error for %q, got %v", field, errs)
				}
			}
		})
	}
}
