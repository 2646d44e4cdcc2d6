package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/valuetrainer/internal/model"
	"github.com/lib/pq"
)

// uniqueViolation はPostgreSQLの一意制約違反のSQLSTATE。
const uniqueViolation = "23505"

// accountsUsernameKey はaccounts.usernameの一意制約名。
const accountsUsernameKey = "accounts_username_key"

// PostgresAccountRepo はPostgreSQLを使用したアカウントリポジトリ。
type PostgresAccountRepo struct {
	db *sql.DB
}

// NewPostgresAccountRepo はPostgresAccountRepoを生成する。
func NewPostgresAccountRepo(db *sql.DB) *PostgresAccountRepo {
	return &PostgresAccountRepo{db: db}
}

// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
func (r *PostgresAccountRepo) FindByID(ctx context.Context, id string) (*model.Account, error) {
	return r.findOne(ctx,
		`SELECT id, username, email, password_hash, created_at FROM accounts WHERE id = $1`,
		id,
	)
}

// FindByUsername はユーザー名の完全一致でアカウントを取得する。見つからない場合はnilを返す。
func (r *PostgresAccountRepo) FindByUsername(ctx context.Context, username string) (*model.Account, error) {
	return r.findOne(ctx,
		`SELECT id, username, email, password_hash, created_at FROM accounts WHERE username = $1`,
		username,
	)
}

func (r *PostgresAccountRepo) findOne(ctx context.Context, query string, arg string) (*model.Account, error) {
	account := &model.Account{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&account.ID, &account.Username, &account.Email, &account.PasswordHash, &account.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}

	return account, nil
}

// Create はアカウントを作成する。
// 事前の存在確認は行わず、accounts_username_key制約に違反した場合はmodel.ErrUsernameTakenを返す。
func (r *PostgresAccountRepo) Create(ctx context.Context, account *model.Account) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (id, username, email, password_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		account.ID, account.Username, account.Email, account.PasswordHash, account.CreatedAt,
	)
	if isUsernameConflict(err) {
		return model.ErrUsernameTaken
	}
	if err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

// isUsernameConflict はエラーがaccounts.usernameの一意制約違反かどうかを判定する。
func isUsernameConflict(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == uniqueViolation && pqErr.Constraint == accountsUsernameKey
}

// compile-time interface check
var _ AccountRepository = (*PostgresAccountRepo)(nil)
