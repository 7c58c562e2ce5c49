// token выпускает и проверяет подписанные JWT двух видов: access и refresh.
// Токены самодостаточны: subject - ID пользователя, вид - claim "typ",
// срок - время выпуска плюс TTL вида.
package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/pribylovaa/auth-session-service/internal/config"
	"github.com/pribylovaa/auth-session-service/internal/models"
)

var (
	// ErrInvalidToken - токен некорректен по формату, подписи, issuer или audience.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired - срок действия токена истёк.
	ErrTokenExpired = errors.New("token expired")
	// ErrWrongKind - вид токена не совпадает с ожидаемым.
	ErrWrongKind = errors.New("wrong token kind")
)

type claims struct {
	UserID int64            `json:"uid"`
	Kind   models.TokenKind `json:"typ"`
	jwt.RegisteredClaims
}

// Issuer выпускает и валидирует токены. Безопасен для конкурентного использования.
type Issuer struct {
	secret     []byte
	issuer     string
	audience   []string
	accessTTL  time.Duration
	refreshTTL time.Duration
	leeway     time.Duration
	now        func() time.Time
}

// Option настраивает Issuer.
type Option func(*Issuer)

// WithClock подменяет источник времени (для тестов TTL).
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

// NewIssuer создаёт Issuer из параметров auth-конфигурации.
func NewIssuer(cfg config.AuthConfig, opts ...Option) *Issuer {
	i := &Issuer{
		secret:     []byte(cfg.JWTSecret),
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
		leeway:     cfg.Leeway,
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(i)
	}

	return i
}

// IssueAccess выпускает access-токен и возвращает момент его истечения.
func (i *Issuer) IssueAccess(userID int64) (string, time.Time, error) {
	return i.issue(userID, models.TokenKindAccess, i.accessTTL)
}

// IssueRefresh выпускает refresh-токен и возвращает момент его истечения.
func (i *Issuer) IssueRefresh(userID int64) (string, time.Time, error) {
	return i.issue(userID, models.TokenKindRefresh, i.refreshTTL)
}

func (i *Issuer) issue(userID int64, kind models.TokenKind, ttl time.Duration) (string, time.Time, error) {
	const op = "token.Issuer.issue"

	now := i.now().UTC()
	exp := jwt.NewNumericDate(now.Add(ttl))

	c := claims{
		UserID: userID,
		Kind:   kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: exp,
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    i.issuer,
			Subject:   strconv.FormatInt(userID, 10),
			Audience:  jwt.ClaimStrings(i.audience),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	return signed, exp.Time.UTC(), nil
}

// Validate проверяет подпись, срок, issuer/audience и вид токена
// и возвращает ID пользователя.
func (i *Issuer) Validate(tokenStr string, kind models.TokenKind) (int64, error) {
	const op = "token.Issuer.Validate"

	parsed, err := jwt.ParseWithClaims(tokenStr, &claims{},
		func(*jwt.Token) (interface{}, error) {
			return i.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(i.leeway),
		jwt.WithIssuer(i.issuer),
		jwt.WithAudience(i.audience...),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, fmt.Errorf("%s: %w", op, ErrTokenExpired)
		}

		return 0, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return 0, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	if c.Kind != kind {
		return 0, fmt.Errorf("%s: %w", op, ErrWrongKind)
	}

	if c.Subject != strconv.FormatInt(c.UserID, 10) {
		return 0, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	return c.UserID, nil
}
