// Package auth はパスワード認証、アカウント登録、セッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/valuetrainer/internal/model"
	"github.com/hitoshi/valuetrainer/internal/repository"
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge  int // 通常セッションの有効期間（秒）
	RememberMaxAge int // remember me 指定時のセッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	accounts repository.AccountRepository
	sessions repository.SessionRepository
	hasher   PasswordHasher
	config   ServiceConfig
	now      func() time.Time

	// 未登録ユーザーのログイン試行でも照合コストを揃えるためのダミーハッシュ
	dummyOnce sync.Once
	dummyHash string
}

// NewService はServiceを生成する。
func NewService(
	accounts repository.AccountRepository,
	sessions repository.SessionRepository,
	hasher PasswordHasher,
	config ServiceConfig,
) *Service {
	return &Service{
		accounts: accounts,
		sessions: sessions,
		hasher:   hasher,
		config:   config,
		now:      time.Now,
	}
}

// Login はユーザー名とパスワードを検証し、セッションを発行する。
// 未登録ユーザーとパスワード不一致はどちらもmodel.ErrInvalidCredentialsを返す。
// rememberがtrueの場合はRememberMaxAgeの永続セッションを発行する。
func (s *Service) Login(ctx context.Context, username, password string, remember bool) (*model.Session, error) {
	account, err := s.accounts.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}

	if account == nil {
		s.hasher.Compare(s.getDummyHash(), password)
		slog.Info("login failed",
			slog.String("username", username),
			slog.String("reason", "unknown_user"),
		)
		return nil, model.ErrInvalidCredentials
	}

	if !s.hasher.Compare(account.PasswordHash, password) {
		slog.Info("login failed",
			slog.String("username", username),
			slog.String("reason", "password_mismatch"),
		)
		return nil, model.ErrInvalidCredentials
	}

	session, err := s.createSession(ctx, account.ID, remember)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("account logged in",
		slog.String("account_id", account.ID),
		slog.Bool("remember", remember),
	)
	return session, nil
}

// Signup はアカウントを作成する。
// パスワードはハッシュ化してから保存し、生のパスワードは保持しない。
// ユーザー名の一意性はストレージの制約に委ね、重複時はmodel.ErrUsernameTakenを返す。
func (s *Service) Signup(ctx context.Context, username, email, password string) (*model.Account, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	account := &model.Account{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    s.now(),
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, model.ErrUsernameTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	slog.Info("account created",
		slog.String("account_id", account.ID),
		slog.String("username", account.Username),
	)
	return account, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessions.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("account logged out")
	return nil
}

// CurrentAccount はセッションIDから現在のアカウントを解決する。
// セッションが存在しない・期限切れ・アカウントが存在しない場合はnilを返す。
func (s *Service) CurrentAccount(ctx context.Context, sessionID string) (*model.Account, error) {
	if sessionID == "" {
		return nil, nil
	}

	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, nil
	}

	account, err := s.accounts.FindByID(ctx, session.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	return account, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, accountID string, remember bool) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	maxAge := s.config.SessionMaxAge
	if remember {
		maxAge = s.config.RememberMaxAge
	}

	now := s.now()
	session := &model.Session{
		ID:         sessionID,
		AccountID:  accountID,
		Persistent: remember,
		ExpiresAt:  now.Add(time.Duration(maxAge) * time.Second),
		CreatedAt:  now,
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// getDummyHash は照合用のダミーハッシュを遅延生成して返す。
func (s *Service) getDummyHash() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash("dummy-password-for-timing")
		if err != nil {
			slog.Error("failed to generate dummy hash", slog.String("error", err.Error()))
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
