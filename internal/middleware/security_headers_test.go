package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSecurityHeadersMiddleware_SetsHeaders(t *testing.T) {
	handler := NewSecurityHeadersMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/login", nil))

	want := map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Referrer-Policy":         "strict-origin-when-cross-origin",
		"Content-Security-Policy": contentSecurityPolicy,
	}
	for header, value := range want {
		if got := w.Result().Header.Get(header); got != value {
			t.Errorf("%s = %q, want %q", header, got, value)
		}
	}
}

func TestContentSecurityPolicy_EvalOnlyOnExercisePage(t *testing.T) {
	if strings.Contains(contentSecurityPolicy, "unsafe-eval") {
		t.Error("default CSP must not allow eval")
	}
	if !strings.Contains(ExercisePageContentSecurityPolicy, "script-src 'self' 'unsafe-eval'") {
		t.Error("exercise page CSP should allow same-origin scripts with eval")
	}
	for _, csp := range []string{contentSecurityPolicy, ExercisePageContentSecurityPolicy} {
		for _, directive := range strings.Split(csp, ";") {
			directive = strings.TrimSpace(directive)
			if (strings.HasPrefix(directive, "script-src") || strings.HasPrefix(directive, "default-src")) &&
				strings.Contains(directive, "unsafe-inline") {
				t.Errorf("CSP must not allow inline scripts: %s", csp)
			}
		}
	}
}
