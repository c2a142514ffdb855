package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/hitoshi/bukuma/internal/model"
)

// querier はsql.DBとsql.Txの共通部分。
// アカウントリポジトリをトランザクション内外で使い回すための抽象。
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// PostgresAccountRepo はPostgreSQLを使用したアカウントリポジトリ。
type PostgresAccountRepo struct {
	db *sql.DB
	q  querier
}

// NewPostgresAccountRepo はPostgresAccountRepoを生成する。
func NewPostgresAccountRepo(db *sql.DB) *PostgresAccountRepo {
	return &PostgresAccountRepo{db: db, q: db}
}

const accountColumns = `id, provider, provider_subject, email, name, username, bio, avatar_url, role, created_at, updated_at`

// scanAccount は1行をAccountに読み取る。
func scanAccount(row interface{ Scan(dest ...any) error }) (*model.Account, error) {
	account := &model.Account{}
	var role string
	var bio, avatarURL sql.NullString
	err := row.Scan(
		&account.ID, &account.Provider, &account.ProviderSubject,
		&account.Email, &account.Name, &account.Username,
		&bio, &avatarURL, &role,
		&account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	account.Bio = bio.String
	account.AvatarURL = avatarURL.String
	if parsed, ok := model.ParseRole(role); ok {
		account.Role = parsed
	}
	return account, nil
}

// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
func (r *PostgresAccountRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	account, err := scanAccount(r.q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account by ID: %w", err)
	}
	return account, nil
}

// FindByProviderAndSubject は外部IdPの(provider, subject)でアカウントを検索する。
func (r *PostgresAccountRepo) FindByProviderAndSubject(ctx context.Context, provider, subject string) (*model.Account, error) {
	account, err := scanAccount(r.q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE provider = $1 AND provider_subject = $2`,
		provider, subject))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account by provider and subject: %w", err)
	}
	return account, nil
}

// FindByEmail はメールアドレスでアカウントを検索する。見つからない場合はnilを返す。
func (r *PostgresAccountRepo) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	account, err := scanAccount(r.q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account by email: %w", err)
	}
	return account, nil
}

// FindByUsername はユーザー名でアカウントを検索する。見つからない場合はnilを返す。
func (r *PostgresAccountRepo) FindByUsername(ctx context.Context, username string) (*model.Account, error) {
	account, err := scanAccount(r.q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE username = $1`, username))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account by username: %w", err)
	}
	return account, nil
}

// ExistsByUsername はユーザー名が使用済みかを返す。
func (r *PostgresAccountRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.q.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM accounts WHERE username = $1)`, username,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check username existence: %w", err)
	}
	return exists, nil
}

// ExistsByUsernameAndIDNot は指定ID以外のアカウントがユーザー名を使用しているかを返す。
func (r *PostgresAccountRepo) ExistsByUsernameAndIDNot(ctx context.Context, username string, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.q.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM accounts WHERE username = $1 AND id <> $2)`,
		username, id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check username existence: %w", err)
	}
	return exists, nil
}

// Create はアカウントを作成する。
func (r *PostgresAccountRepo) Create(ctx context.Context, account *model.Account) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO accounts (id, provider, provider_subject, email, name, username, bio, avatar_url, role, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		account.ID, account.Provider, account.ProviderSubject,
		account.Email, account.Name, account.Username,
		nullString(account.Bio), nullString(account.AvatarURL), string(account.Role),
		account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

// Update はアカウント情報を更新する。
func (r *PostgresAccountRepo) Update(ctx context.Context, account *model.Account) error {
	result, err := r.q.ExecContext(ctx,
		`UPDATE accounts
		 SET provider = $2, provider_subject = $3, email = $4, name = $5,
		     username = $6, bio = $7, avatar_url = $8, role = $9, updated_at = $10
		 WHERE id = $1`,
		account.ID, account.Provider, account.ProviderSubject,
		account.Email, account.Name, account.Username,
		nullString(account.Bio), nullString(account.AvatarURL), string(account.Role),
		account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("account not found: %s", account.ID)
	}
	return nil
}

// InTx はアカウントストアの操作を単一トランザクションで実行する。
func (r *PostgresAccountRepo) InTx(ctx context.Context, fn func(store AccountStore) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	txRepo := &PostgresAccountRepo{db: r.db, q: tx}
	if err := fn(txRepo); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// nullString は空文字列をNULLとして保存するための変換。
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// compile-time interface check
var (
	_ AccountStore    = (*PostgresAccountRepo)(nil)
	_ AccountTxRunner = (*PostgresAccountRepo)(nil)
)
