// Package user はプロフィールの取得・更新を提供する。
package user

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/bukuma/internal/model"
	"github.com/hitoshi/bukuma/internal/repository"
	"github.com/hitoshi/bukuma/internal/security"
	"github.com/hitoshi/bukuma/internal/token"
	"github.com/hitoshi/bukuma/internal/username"
)

// フィールド長の上限。
const (
	maxNameLength      = 80
	maxBioLength       = 280
	maxAvatarURLLength = 500
)

// UpdateRequest はプロフィールの部分更新リクエスト。
// nilのフィールドは変更しない。
type UpdateRequest struct {
	Name      *string
	Username  *string
	Bio       *string
	AvatarURL *string
}

// Service はプロフィールに関するビジネスロジックを提供する。
type Service struct {
	store     repository.AccountStore
	txRunner  repository.AccountTxRunner
	sanitizer security.TextSanitizerService
}

// NewService はServiceを生成する。
func NewService(store repository.AccountStore, txRunner repository.AccountTxRunner, sanitizer security.TextSanitizerService) *Service {
	return &Service{store: store, txRunner: txRunner, sanitizer: sanitizer}
}

// GetOrCreate は検証済みクレームから自身のプロフィールを取得する。
// アカウント行が存在しない場合はクレームの内容から自動作成する
// （認証済みであればプロフィールは必ず存在する、という保証のため）。
func (s *Service) GetOrCreate(ctx context.Context, claims *token.Claims) (*model.Account, error) {
	account, err := s.store.FindByID(ctx, claims.AccountID)
	if err != nil {
		return nil, err
	}
	if account != nil {
		return account, nil
	}

	err = s.txRunner.InTx(ctx, func(store repository.AccountStore) error {
		account, err = s.provisionFromClaims(ctx, store, claims)
		return err
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// Update は自身のプロフィールを部分更新する。
// ユーザー名の一意性確認と書き込みは単一トランザクションで行う。
func (s *Service) Update(ctx context.Context, claims *token.Claims, req UpdateRequest) (*model.Account, error) {
	if err := validateUpdate(req); err != nil {
		return nil, err
	}

	var account *model.Account
	err := s.txRunner.InTx(ctx, func(store repository.AccountStore) error {
		var err error
		account, err = store.FindByID(ctx, claims.AccountID)
		if err != nil {
			return err
		}
		if account == nil {
			account, err = s.provisionFromClaims(ctx, store, claims)
			if err != nil {
				return err
			}
		}

		changed := false
		if req.Name != nil {
			if name := s.sanitizer.Sanitize(*req.Name); name != "" && name != account.Name {
				account.Name = name
				changed = true
			}
		}
		if req.Username != nil && *req.Username != "" {
			resolved, err := s.resolver(store).ResolveUnique(ctx, username.Normalize(*req.Username), &account.ID)
			if err != nil {
				return err
			}
			if resolved != account.Username {
				account.Username = resolved
				changed = true
			}
		}
		if req.Bio != nil {
			if bio := s.sanitizer.Sanitize(*req.Bio); bio != account.Bio {
				account.Bio = bio
				changed = true
			}
		}
		if req.AvatarURL != nil {
			if avatarURL := s.sanitizer.Sanitize(*req.AvatarURL); avatarURL != account.AvatarURL {
				account.AvatarURL = avatarURL
				changed = true
			}
		}

		if changed {
			account.UpdatedAt = time.Now()
			return store.Update(ctx, account)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// GetPublic は指定IDの公開プロフィールを取得する。
// 存在しない場合はnot_foundエラーを返す。
func (s *Service) GetPublic(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	account, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, model.NewAccountNotFoundError()
	}
	return account, nil
}

// provisionFromClaims はクレームの内容からアカウント行を自動作成する。
func (s *Service) provisionFromClaims(ctx context.Context, store repository.AccountStore, claims *token.Claims) (*model.Account, error) {
	email := claims.Email
	if email == "" {
		email = "unknown@example.com"
	}
	name := claims.Name
	if name == "" {
		name = "User"
	}

	base := username.Normalize(claims.Username)
	if base == "" {
		base = username.BaseFromEmail(email)
	}
	resolved, err := s.resolver(store).ResolveUnique(ctx, base, &claims.AccountID)
	if err != nil {
		return nil, err
	}

	role := model.RoleUser
	if claims.IsAdmin() {
		role = model.RoleAdmin
	}

	now := time.Now()
	account := &model.Account{
		ID:        claims.AccountID,
		Email:     email,
		Name:      name,
		Username:  resolved,
		AvatarURL: claims.AvatarURL,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := store.Create(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// resolver は指定ストアに対するユーザー名リゾルバを返す。
func (s *Service) resolver(store repository.AccountStore) *username.Resolver {
	return username.NewResolver(func(ctx context.Context, candidate string, excludeID *uuid.UUID) (bool, error) {
		if excludeID == nil {
			return store.ExistsByUsername(ctx, candidate)
		}
		return store.ExistsByUsernameAndIDNot(ctx, candidate, *excludeID)
	})
}

// validateUpdate は更新リクエストのフィールド長を検証する。
func validateUpdate(req UpdateRequest) error {
	if req.Name != nil && len(*req.Name) > maxNameLength {
		return model.NewValidationError("name", "80文字以内で入力してください")
	}
	if req.Bio != nil && len(*req.Bio) > maxBioLength {
		return model.NewValidationError("bio", "280文字以内で入力してください")
	}
	if req.AvatarURL != nil && len(*req.AvatarURL) > maxAvatarURLLength {
		return model.NewValidationError("avatarUrl", "500文字以内で入力してください")
	}
	return nil
}
