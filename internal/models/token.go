package models

import "time"

// TokenKind - назначение токена. Записывается в claim "typ".
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// TokenPair - пара токенов, выдаваемая при входе.
//
// Описание:
//   - AccessToken - короткоживущий JWT для доступа к API;
//   - RefreshToken - долгоживущий JWT, годный только для выпуска нового access;
//     действителен, пока в кэше лежит его дескриптор отзыва;
//   - *ExpiresAt - моменты истечения (UTC).
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// AccessGrant - новый access-токен, выпущенный по refresh-токену.
type AccessGrant struct {
	AccessToken string
	ExpiresAt   time.Time
}

// LoginResult - результат успешного входа.
type LoginResult struct {
	Tokens  TokenPair
	Profile Profile
}
