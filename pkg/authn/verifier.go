package authn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// ErrInvalidToken は検証失敗時に返す唯一のエラー。
// 失敗理由（署名不一致・期限切れ・発行者不一致など）を呼び出し側に
// 区別させないことで、検証内部の情報を外部に漏らさない。
var ErrInvalidToken = errors.New("invalid token")

// Claims は検証済みJWTから抽出したクレームセット。
// リクエスト1件のライフタイムでのみ使用し、永続化もキャッシュもしない。
type Claims struct {
	// Subject は認証済みユーザーの一意識別子（subクレーム）。
	Subject string
	// Issuer はトークンの発行者（issクレーム）。
	Issuer string
	// Email はユーザーのメールアドレス（emailクレームが存在する場合のみ）。
	Email string
	// ExpiresAt はトークンの有効期限（expクレーム）。
	ExpiresAt time.Time
}

// Verifier は外部IDプロバイダが発行したBearerトークンを検証する。
// 公開鍵セット（JWKS）はプロバイダのwell-knownエンドポイントから取得し、
// jwk.Cacheが裏で定期リフレッシュする。鍵セットはバージョン単位で不変のため、
// 並行リフレッシュはlast-write-winsで構わない。
type Verifier struct {
	// jwksURL は公開鍵セットの取得先URL。
	jwksURL string
	// issuer は受け入れるissクレームの期待値。
	issuer string
	// clockSkew は時刻系クレームの検証で許容するズレ。
	clockSkew time.Duration
	// cache はJWKSのキャッシュ。
	cache *jwk.Cache
}

// NewVerifier はIDプロバイダのドメインからVerifierを生成する。
// JWKSのURLと発行者文字列はドメインから導出する（Auth0の規約）。
func NewVerifier(domain string) (*Verifier, error) {
	return NewVerifierForIssuer(
		fmt.Sprintf("https://%s/.well-known/jwks.json", domain),
		fmt.Sprintf("https://%s/", domain),
	)
}

// NewVerifierForIssuer はJWKSのURLと発行者の期待値を直接指定してVerifierを生成する。
// テストでローカルのJWKSサーバーを差し込む際に使用する。
func NewVerifierForIssuer(jwksURL, issuer string) (*Verifier, error) {
	cache := jwk.NewCache(context.Background())
	if err := cache.Register(jwksURL, jwk.WithMinRefreshInterval(5*time.Minute)); err != nil {
		return nil, fmt.Errorf("JWKSの登録に失敗: %w", err)
	}
	return &Verifier{
		jwksURL:   jwksURL,
		issuer:    issuer,
		clockSkew: 30 * time.Second,
		cache:     cache,
	}, nil
}

// Verify はトークンを検証し、成功時はクレームセットを返す。
//
// 検証内容: kidが一致する公開鍵によるRS256署名、発行者、有効期限。
// audクレームは本システムのポリシーとして検証しない。これは意図的な緩和で
// あり、挙動はテストで固定している。締める場合は関係者への確認が必要。
// いかなる失敗もErrInvalidTokenに集約し、同一リクエスト内での再試行はしない。
func (v *Verifier) Verify(ctx context.Context, token string) (*Claims, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	keySet, err := v.cache.Get(ctx, v.jwksURL)
	if err != nil {
		return nil, ErrInvalidToken
	}

	parsed, err := jwt.Parse([]byte(token), jwt.WithKeySet(keySet))
	if err != nil {
		return nil, ErrInvalidToken
	}

	if err := jwt.Validate(parsed,
		jwt.WithIssuer(v.issuer),
		jwt.WithAcceptableSkew(v.clockSkew),
	); err != nil {
		return nil, ErrInvalidToken
	}

	claims := &Claims{
		Subject:   parsed.Subject(),
		Issuer:    parsed.Issuer(),
		ExpiresAt: parsed.Expiration(),
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	if email, ok := parsed.Get("email"); ok {
		if s, ok := email.(string); ok {
			claims.Email = s
		}
	}
	return claims, nil
}
