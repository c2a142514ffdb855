// Package auth はGoogleサインインとアカウント照合を提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/bukuma/internal/googleid"
	"github.com/hitoshi/bukuma/internal/model"
	"github.com/hitoshi/bukuma/internal/repository"
	"github.com/hitoshi/bukuma/internal/username"
)

// ProviderGoogle はGoogleプロバイダーの識別子。
const ProviderGoogle = "google"

// GoogleVerifier は外部IDトークン検証のインターフェース。
type GoogleVerifier interface {
	// Verify はIDトークンを検証し、本人情報を返す。
	Verify(ctx context.Context, idToken string) (*googleid.Payload, error)
}

// TokenIssuer はセッショントークン発行のインターフェース。
type TokenIssuer interface {
	// Issue はアカウントに紐づくセッショントークンと有効期間（秒）を返す。
	Issue(account *model.Account) (string, int, error)
}

// SignInMetrics はサインイン処理のメトリクス記録のインターフェース。
type SignInMetrics interface {
	RecordSignInSuccess()
	RecordSignInFailure(reason string)
	RecordSignInLatency(duration time.Duration)
}

// AuthResult はサインイン成功時の応答。
type AuthResult struct {
	Token     string
	TokenType string // 常に "Bearer"
	ExpiresIn int    // トークン有効期間（秒）
	Account   *model.Account
}

// Service はサインインとアカウント照合のビジネスロジックを提供する。
type Service struct {
	verifier GoogleVerifier
	issuer   TokenIssuer
	txRunner repository.AccountTxRunner
	metrics  SignInMetrics
}

// NewService はServiceを生成する。
func NewService(
	verifier GoogleVerifier,
	issuer TokenIssuer,
	txRunner repository.AccountTxRunner,
	metrics SignInMetrics,
) *Service {
	return &Service{
		verifier: verifier,
		issuer:   issuer,
		txRunner: txRunner,
		metrics:  metrics,
	}
}

// SignInWithGoogle はGoogleのIDトークンを検証し、アカウントを照合して
// セッショントークンを発行する。
//
// 照合は (provider, subject) → email の順に既存アカウントを探し、
// どちらにも該当しなければ新規作成する。既存アカウントには検証済みの
// 本人情報を反映するが、書き込みは変更があった場合のみ行う。
// ユーザー名の一意性確認と書き込みは単一トランザクションで行う。
func (s *Service) SignInWithGoogle(ctx context.Context, idToken, requestedUsername string) (*AuthResult, error) {
	started := time.Now()
	defer func() {
		s.metrics.RecordSignInLatency(time.Since(started))
	}()

	payload, err := s.verifier.Verify(ctx, idToken)
	if err != nil {
		s.metrics.RecordSignInFailure(failureReason(err))
		return nil, err
	}

	var account *model.Account
	err = s.txRunner.InTx(ctx, func(store repository.AccountStore) error {
		account, err = s.reconcile(ctx, store, payload, requestedUsername)
		return err
	})
	if err != nil {
		s.metrics.RecordSignInFailure(failureReason(err))
		return nil, err
	}

	token, expiresIn, err := s.issuer.Issue(account)
	if err != nil {
		s.metrics.RecordSignInFailure("token_issue")
		return nil, fmt.Errorf("failed to issue session token: %w", err)
	}

	s.metrics.RecordSignInSuccess()
	slog.Info("user signed in",
		slog.String("account_id", account.ID.String()),
		slog.String("username", account.Username),
	)

	return &AuthResult{
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: expiresIn,
		Account:   account,
	}, nil
}

// reconcile は検証済みの本人情報をローカルアカウントに照合する。
// storeはトランザクション内のものを渡すこと。
func (s *Service) reconcile(ctx context.Context, store repository.AccountStore, payload *googleid.Payload, requestedUsername string) (*model.Account, error) {
	resolver := username.NewResolver(func(ctx context.Context, candidate string, excludeID *uuid.UUID) (bool, error) {
		if excludeID == nil {
			return store.ExistsByUsername(ctx, candidate)
		}
		return store.ExistsByUsernameAndIDNot(ctx, candidate, *excludeID)
	})

	account, err := store.FindByProviderAndSubject(ctx, ProviderGoogle, payload.Subject)
	if err != nil {
		return nil, err
	}
	if account == nil {
		account, err = store.FindByEmail(ctx, payload.Email)
		if err != nil {
			return nil, err
		}
	}

	if account == nil {
		return s.create(ctx, store, resolver, payload, requestedUsername)
	}

	changed := false
	if account.Provider != ProviderGoogle {
		account.Provider = ProviderGoogle
		changed = true
	}
	if account.ProviderSubject == "" {
		account.ProviderSubject = payload.Subject
		changed = true
	}
	if payload.Name != "" && payload.Name != account.Name {
		account.Name = payload.Name
		changed = true
	}
	if payload.Email != "" && payload.Email != account.Email {
		account.Email = payload.Email
		changed = true
	}
	if payload.Picture != "" && payload.Picture != account.AvatarURL {
		account.AvatarURL = payload.Picture
		changed = true
	}
	if account.Role == "" {
		account.Role = model.RoleUser
		changed = true
	}

	if requestedUsername != "" && requestedUsername != account.Username {
		resolved, err := resolver.ResolveUnique(ctx, username.Normalize(requestedUsername), &account.ID)
		if err != nil {
			return nil, err
		}
		if resolved != account.Username {
			account.Username = resolved
			changed = true
		}
	}

	if changed {
		account.UpdatedAt = time.Now()
		if err := store.Update(ctx, account); err != nil {
			return nil, err
		}
	}

	return account, nil
}

// create は新規アカウントを作成する。メールアドレスは必須。
func (s *Service) create(ctx context.Context, store repository.AccountStore, resolver *username.Resolver, payload *googleid.Payload, requestedUsername string) (*model.Account, error) {
	if payload.Email == "" {
		return nil, model.NewEmailMissingError()
	}

	base := username.Normalize(requestedUsername)
	if base == "" {
		base = username.BaseFromEmail(payload.Email)
	}
	resolved, err := resolver.ResolveUnique(ctx, base, nil)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	account := &model.Account{
		ID:              uuid.New(),
		Provider:        ProviderGoogle,
		ProviderSubject: payload.Subject,
		Email:           payload.Email,
		Name:            payload.Name,
		Username:        resolved,
		AvatarURL:       payload.Picture,
		Role:            model.RoleUser,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := store.Create(ctx, account); err != nil {
		return nil, err
	}

	slog.Info("new account created",
		slog.String("account_id", account.ID.String()),
		slog.String("username", account.Username),
	)
	return account, nil
}

// failureReason はメトリクスラベル用の失敗理由を返す。
func failureReason(err error) string {
	if apiErr, ok := err.(*model.APIError); ok {
		switch apiErr.Code {
		case model.ErrCodeEmailNotVerified:
			return "email_not_verified"
		case model.ErrCodeEmailMissing:
			return "email_missing"
		case model.ErrCodeInvalidIDToken:
			return "invalid_token"
		}
	}
	return "internal"
}
