// Package token はサービス共通のセッショントークン（自己完結型の署名付きJWT）の
// 発行と検証を提供する。
//
// 発行はauthサービスのみが行い、検証は各リソースサービスが共有シークレットで
// 独立に行う。ランタイムのセッションストアは存在しない。
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/bukuma/internal/model"
)

// minSecretBytes は署名シークレットの最小長。
// これ未満はデプロイ設定の誤りとして起動時に失敗させる。
const minSecretBytes = 32

// Config はトークン発行・検証の設定。
type Config struct {
	Secret            string // HS256署名用の共有シークレット（32バイト以上）
	Issuer            string // issクレームに設定する発行者名
	ExpirationSeconds int    // トークンの有効期間（秒）
}

// Claims はセッショントークンの検証済みクレームを固定構造で表す。
// 検証時に1回だけ型チェックされ、下流はこの構造体のみを参照する。
type Claims struct {
	AccountID uuid.UUID
	Email     string
	Name      string
	Username  string
	AvatarURL string
	Roles     []model.Role
}

// HasWriteRole は書き込み操作が許可されるロールを保持しているかを返す。
func (c *Claims) HasWriteRole() bool {
	for _, r := range c.Roles {
		if r.CanWrite() {
			return true
		}
	}
	return false
}

// IsAdmin は管理者ロールを保持しているかを返す。
func (c *Claims) IsAdmin() bool {
	for _, r := range c.Roles {
		if r.IsAdmin() {
			return true
		}
	}
	return false
}

// validateSecret はシークレットの長さを検証する。
func validateSecret(secret string) error {
	if secret == "" {
		return errors.New("token: signing secret must be configured")
	}
	if len(secret) < minSecretBytes {
		return fmt.Errorf("token: signing secret must be at least %d bytes", minSecretBytes)
	}
	return nil
}

// Issuer はアカウント情報からセッショントークンを発行する。
type Issuer struct {
	secret     []byte
	issuer     string
	expiration time.Duration
}

// NewIssuer はIssuerを生成する。
// シークレットが未設定または32バイト未満の場合はエラーを返す。
// この失敗は起動時の設定不備であり、リクエスト単位で回復するものではない。
func NewIssuer(cfg Config) (*Issuer, error) {
	if err := validateSecret(cfg.Secret); err != nil {
		return nil, err
	}
	return &Issuer{
		secret:     []byte(cfg.Secret),
		issuer:     cfg.Issuer,
		expiration: time.Duration(cfg.ExpirationSeconds) * time.Second,
	}, nil
}

// Issue はアカウントに紐づくセッショントークンを発行し、
// トークン文字列と有効期間（秒）を返す。
func (i *Issuer) Issue(account *model.Account) (string, int, error) {
	now := time.Now()
	expiresAt := now.Add(i.expiration)

	claims := jwt.MapClaims{
		"iss":       i.issuer,
		"sub":       account.ID.String(),
		"iat":       now.Unix(),
		"exp":       expiresAt.Unix(),
		"email":     account.Email,
		"name":      account.Name,
		"username":  account.Username,
		"avatarUrl": account.AvatarURL,
		"roles":     []string{string(account.Role)},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", 0, fmt.Errorf("failed to sign session token: %w", err)
	}

	return signed, int(i.expiration.Seconds()), nil
}

// Verifier はセッショントークンを共有シークレットで検証する。
// 外部システムへの問い合わせは行わない。
type Verifier struct {
	secret []byte
	issuer string
}

// NewVerifier はVerifierを生成する。
// シークレットの検証条件はNewIssuerと同じ。
func NewVerifier(cfg Config) (*Verifier, error) {
	if err := validateSecret(cfg.Secret); err != nil {
		return nil, err
	}
	return &Verifier{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
	}, nil
}

// Verify はトークンの署名・発行者・有効期限を検証し、固定構造のクレームを返す。
// subjectがUUIDとして解釈できない場合は認証エラーを返す。
func (v *Verifier) Verify(tokenStr string) (*Claims, error) {
	parsed, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, model.NewInvalidSessionTokenError(verifyFailureReason(err))
	}

	mc, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, model.NewInvalidSessionTokenError("claims")
	}

	sub, err := mc.GetSubject()
	if err != nil {
		return nil, model.NewInvalidTokenSubjectError()
	}
	accountID, err := uuid.Parse(sub)
	if err != nil {
		return nil, model.NewInvalidTokenSubjectError()
	}

	claims := &Claims{AccountID: accountID}
	claims.Email, _ = mc["email"].(string)
	claims.Name, _ = mc["name"].(string)
	claims.Username, _ = mc["username"].(string)
	claims.AvatarURL, _ = mc["avatarUrl"].(string)

	if rawRoles, ok := mc["roles"].([]interface{}); ok {
		for _, raw := range rawRoles {
			s, ok := raw.(string)
			if !ok {
				continue
			}
			if role, ok := model.ParseRole(s); ok {
				claims.Roles = append(claims.Roles, role)
			}
		}
	}

	return claims, nil
}

// verifyFailureReason は検証エラーをユーザー向けの短い理由に分類する。
func verifyFailureReason(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "expired"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "signature"
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return "issuer"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "malformed"
	default:
		return "invalid"
	}
}
