package auth

// GateDecision はログイン・サインアップ画面へのアクセス可否の判定結果。
type GateDecision int

const (
	// GateProceed はフォーム処理へ進むことを示す。
	GateProceed GateDecision = iota
	// GateRedirectIndex はフォーム処理を行わずトップページへリダイレクトすることを示す。
	GateRedirectIndex
)

// Gate は認証済みのリクエストをログイン・サインアップ画面から遠ざける。
// /login と /signup の両方で同じ判定を使う。
func Gate(authenticated bool) GateDecision {
	if authenticated {
		return GateRedirectIndex
	}
	return GateProceed
}
