// Package googleid はGoogleが発行したIDトークンの検証を提供する。
//
// 検証は署名（JWKS経由のRS256/ES256）、発行者、有効期限、および
// 設定されている場合のみaudienceに対して行う。クライアントIDが未設定の
// デプロイではaudience検証をスキップする。
package googleid

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/bukuma/internal/model"
)

const (
	// DefaultIssuer はGoogleのIDトークン発行者。
	DefaultIssuer = "https://accounts.google.com"
	// DefaultJWKSURI はGoogleの公開鍵エンドポイント。
	DefaultJWKSURI = "https://www.googleapis.com/oauth2/v3/certs"

	defaultCacheTTL = time.Hour
	// defaultFallbackName はIDトークンに名前が含まれない場合の表示名。
	defaultFallbackName = "Google User"
)

// Config はIDトークン検証の設定。
type Config struct {
	ClientID   string        // 期待するaudience。空の場合はaudience検証をスキップする
	Issuer     string        // 期待する発行者。空の場合はDefaultIssuer
	JWKSURI    string        // 公開鍵エンドポイント。空の場合はDefaultJWKSURI
	HTTPClient *http.Client  // JWKS取得用クライアント。nilの場合は10秒タイムアウトのデフォルト
	CacheTTL   time.Duration // JWKSキャッシュのTTL。0の場合は1時間
}

// Payload は検証済みIDトークンから抽出した本人情報。
type Payload struct {
	Subject string // IdP側の安定した利用者ID
	Email   string // 検証済みメールアドレス
	Name    string // 表示名
	Picture string // アバター画像URL（ない場合は空）
}

// Verifier はGoogleのIDトークンを検証する。
// JWKSはkidをキーにキャッシュし、未知のkidに遭遇したら鍵ローテーションと
// みなして再取得する。複数ゴルーチンから安全に利用できる。
type Verifier struct {
	clientID string
	issuer   string
	jwks     *jwksCache
}

// NewVerifier はVerifierを生成する。
func NewVerifier(cfg Config) *Verifier {
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultIssuer
	}
	if cfg.JWKSURI == "" {
		cfg.JWKSURI = DefaultJWKSURI
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}

	return &Verifier{
		clientID: cfg.ClientID,
		issuer:   cfg.Issuer,
		jwks:     newJWKSCache(cfg.JWKSURI, ttl, client),
	}
}

// Verify はIDトークンを検証し、本人情報を返す。
// すべての失敗は認証エラー（*model.APIError）として返る。
func (v *Verifier) Verify(ctx context.Context, idToken string) (*Payload, error) {
	if idToken == "" {
		return nil, model.NewInvalidIDTokenError("empty")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256", "ES256"}),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
	}
	if v.clientID != "" {
		opts = append(opts, jwt.WithAudience(v.clientID))
	}

	parsed, err := jwt.Parse(idToken, func(t *jwt.Token) (interface{}, error) {
		kid, ok := t.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, fmt.Errorf("token header missing kid")
		}
		return v.jwks.getKey(ctx, kid)
	}, opts...)
	if err != nil {
		return nil, model.NewInvalidIDTokenError(err.Error())
	}

	mc, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, model.NewInvalidIDTokenError("claims")
	}

	sub, _ := mc["sub"].(string)
	if sub == "" {
		return nil, model.NewInvalidIDTokenError("missing subject")
	}

	email, _ := mc["email"].(string)
	if email == "" {
		return nil, model.NewEmailMissingError()
	}
	if verified, ok := mc["email_verified"].(bool); ok && !verified {
		return nil, model.NewEmailNotVerifiedError()
	}

	name, _ := mc["name"].(string)
	if name == "" {
		name = defaultFallbackName
	}
	picture, _ := mc["picture"].(string)

	return &Payload{
		Subject: sub,
		Email:   email,
		Name:    name,
		Picture: picture,
	}, nil
}

// jwksCache はJWKSエンドポイントから取得した公開鍵をkid単位でキャッシュする。
type jwksCache struct {
	uri    string
	ttl    time.Duration
	client *http.Client

	mu        sync.Mutex
	keys      map[string]any // kid -> *rsa.PublicKey または *ecdsa.PublicKey
	fetchedAt time.Time
}

func newJWKSCache(uri string, ttl time.Duration, client *http.Client) *jwksCache {
	return &jwksCache{
		uri:    uri,
		ttl:    ttl,
		client: client,
	}
}

// getKey はkidに対応する公開鍵を返す。キャッシュが有効でもkidが見つからない
// 場合は鍵ローテーションの可能性があるため再取得する。
func (c *jwksCache) getKey(ctx context.Context, kid string) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.keys != nil && time.Since(c.fetchedAt) < c.ttl {
		if key, ok := c.keys[kid]; ok {
			return key, nil
		}
	}

	keys, err := c.fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS from %s: %w", c.uri, err)
	}
	c.keys = keys
	c.fetchedAt = time.Now()

	key, ok := keys[kid]
	if !ok {
		return nil, fmt.Errorf("key ID %q not found in JWKS", kid)
	}
	return key, nil
}

// jwkKey はJWKSレスポンス中の1鍵。RSA/EC鍵の再構築に必要なフィールドのみ持つ。
type jwkKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	// RSA
	N string `json:"n"`
	E string `json:"e"`
	// EC
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y"`
}

// fetch はJWKSエンドポイントから鍵一覧を取得する。レスポンスは1MBに制限する。
func (c *jwksCache) fetch(ctx context.Context) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.uri, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	var payload struct {
		Keys []jwkKey `json:"keys"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse JWKS JSON: %w", err)
	}

	keys := make(map[string]any, len(payload.Keys))
	for _, k := range payload.Keys {
		if k.Kid == "" {
			continue
		}
		switch k.Kty {
		case "RSA":
			pub, err := parseRSAPublicKey(k.N, k.E)
			if err != nil {
				continue // 壊れた鍵はスキップ
			}
			keys[k.Kid] = pub
		case "EC":
			pub, err := parseECPublicKey(k.Crv, k.X, k.Y)
			if err != nil {
				continue
			}
			keys[k.Kid] = pub
		}
	}
	return keys, nil
}

// parseRSAPublicKey はbase64url形式のモジュラスと指数から*rsa.PublicKeyを構築する。
func parseRSAPublicKey(nBase64, eBase64 string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(nBase64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode RSA modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(eBase64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode RSA exponent: %w", err)
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}, nil
}

// parseECPublicKey は曲線名とbase64url形式の座標から*ecdsa.PublicKeyを構築する。
func parseECPublicKey(crv, xBase64, yBase64 string) (*ecdsa.PublicKey, error) {
	var curve elliptic.Curve
	switch crv {
	case "P-256":
		curve = elliptic.P256()
	case "P-384":
		curve = elliptic.P384()
	case "P-521":
		curve = elliptic.P521()
	default:
		return nil, fmt.Errorf("unsupported EC curve %q", crv)
	}

	xBytes, err := base64.RawURLEncoding.DecodeString(xBase64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode EC x coordinate: %w", err)
	}
	yBytes, err := base64.RawURLEncoding.DecodeString(yBase64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode EC y coordinate: %w", err)
	}

	return &ecdsa.PublicKey{
		Curve: curve,
		X:     new(big.Int).SetBytes(xBytes),
		Y:     new(big.Int).SetBytes(yBytes),
	}, nil
}
