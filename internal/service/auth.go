package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pribylovaa/auth-session-service/internal/models"
	"github.com/pribylovaa/auth-session-service/internal/pkg/log"
	"github.com/pribylovaa/auth-session-service/internal/pkg/redact"
	"github.com/pribylovaa/auth-session-service/internal/storage"
)

// Register создаёт учётную запись и кладёт её профиль в кэш.
// Занятость username и email проверяется до хэширования; хранилище
// повторяет проверку атомарно вместе со вставкой.
func (s *Service) Register(ctx context.Context, username, email, password string) (_ *models.Profile, err error) {
	const op = "service.auth.Register"

	defer func() { s.observe("register", err) }()

	lg := log.From(ctx)

	in, err := validateRegistration(username, email, password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.ensureFree(ctx, in); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	hash, err := s.hasher.Hash(in.password)
	if err != nil {
		lg.Error("password_hash_failed", slog.String("op", op), slog.String("err", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user := &models.User{
		Username:     in.username,
		Email:        in.email,
		PasswordHash: hash,
	}

	if err := s.storage.CreateUser(ctx, user); err != nil {
		switch {
		case errors.Is(err, storage.ErrUsernameTaken):
			return nil, fmt.Errorf("%s: %w", op, ErrUsernameTaken)
		case errors.Is(err, storage.ErrEmailTaken):
			return nil, fmt.Errorf("%s: %w", op, ErrEmailTaken)
		case errors.Is(err, storage.ErrAlreadyExists):
			return nil, fmt.Errorf("%s: %w", op, ErrConflict)
		}

		lg.Error("create_user_failed", slog.String("op", op), slog.String("err", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, unavailable(err))
	}

	profile := user.Profile()
	s.cacheProfile(ctx, profile)

	lg.Info("user_registered",
		slog.Int64("user_id", user.ID),
		slog.String("username", redact.Username(user.Username)),
		slog.String("email", redact.Email(user.Email)),
	)

	return &profile, nil
}

// ensureFree - прикладная предпроверка уникальности: сначала username, затем email.
func (s *Service) ensureFree(ctx context.Context, in registration) error {
	_, err := s.storage.UserByUsername(ctx, in.username)
	switch {
	case err == nil:
		return ErrUsernameTaken
	case !errors.Is(err, storage.ErrNotFound):
		return unavailable(err)
	}

	_, err = s.storage.UserByEmail(ctx, in.email)
	switch {
	case err == nil:
		return ErrEmailTaken
	case !errors.Is(err, storage.ErrNotFound):
		return unavailable(err)
	}

	return nil
}

// Login проверяет пароль и выпускает пару токенов.
// Неизвестный пользователь и неверный пароль дают одну и ту же ошибку
// и сопоставимое время ответа.
//
// Запись профиля в кэш - best effort. Запись дескриптора отзыва обязательна:
// без него refresh-токен бесполезен, поэтому её сбой проваливает вход.
func (s *Service) Login(ctx context.Context, username, password string) (_ *models.LoginResult, err error) {
	const op = "service.auth.Login"

	defer func() { s.observe("login", err) }()

	lg := log.From(ctx)

	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, fmt.Errorf("%s: username and password are required: %w", op, ErrInvalidInput)
	}

	user, err := s.storage.UserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.hasher.VerifyDummy(password)
			lg.Info("login_failed", slog.String("username", redact.Username(username)))
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}

		lg.Error("user_lookup_failed", slog.String("op", op), slog.String("err", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, unavailable(err))
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		lg.Info("login_failed", slog.String("username", redact.Username(username)))
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	pair, err := s.issuePair(user.ID)
	if err != nil {
		lg.Error("token_issue_failed", slog.String("op", op), slog.String("err", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	profile := user.Profile()
	s.cacheProfile(ctx, profile)

	if err := s.cache.Put(ctx, s.keys.Revocation(user.ID), []byte(pair.RefreshToken), s.revocationTTL); err != nil {
		lg.Error("revocation_handle_write_failed",
			slog.String("op", op),
			slog.Int64("user_id", user.ID),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w", op, unavailable(err))
	}

	lg.Info("user_logged_in", slog.Int64("user_id", user.ID))

	return &models.LoginResult{Tokens: pair, Profile: profile}, nil
}

func (s *Service) issuePair(userID int64) (models.TokenPair, error) {
	at, atExp, err := s.tokens.IssueAccess(userID)
	if err != nil {
		return models.TokenPair{}, err
	}

	rt, rtExp, err := s.tokens.IssueRefresh(userID)
	if err != nil {
		return models.TokenPair{}, err
	}

	return models.TokenPair{
		AccessToken:      at,
		RefreshToken:     rt,
		AccessExpiresAt:  atExp,
		RefreshExpiresAt: rtExp,
	}, nil
}

// Refresh выпускает новый access-токен по refresh-токену.
// Refresh-токен не ротируется. Он принимается, только если в кэше лежит
// дескриптор отзыва с тем же значением; сбой кэша отказывает в выдаче.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (_ *models.AccessGrant, err error) {
	const op = "service.auth.Refresh"

	defer func() { s.observe("refresh", err) }()

	lg := log.From(ctx)

	if refreshToken == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	uid, err := s.tokens.Validate(refreshToken, models.TokenKindRefresh)
	if err != nil {
		lg.Info("refresh_token_rejected", slog.String("reason", err.Error()))
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidToken, err)
	}

	handle, ok, err := s.cache.Get(ctx, s.keys.Revocation(uid))
	if err != nil {
		lg.Error("revocation_handle_read_failed",
			slog.String("op", op),
			slog.Int64("user_id", uid),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w", op, unavailable(err))
	}

	if !ok || subtle.ConstantTimeCompare(handle, []byte(refreshToken)) != 1 {
		lg.Info("refresh_token_revoked", slog.Int64("user_id", uid))
		return nil, fmt.Errorf("%s: %w", op, ErrTokenRevoked)
	}

	if _, err := s.storage.UserByID(ctx, uid); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}

		lg.Error("user_lookup_failed", slog.String("op", op), slog.String("err", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, unavailable(err))
	}

	at, exp, err := s.tokens.IssueAccess(uid)
	if err != nil {
		lg.Error("token_issue_failed", slog.String("op", op), slog.String("err", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.AccessGrant{AccessToken: at, ExpiresAt: exp}, nil
}

// Authenticate проверяет access-токен и возвращает ID пользователя.
// Проверка чисто вычислительная: ни хранилище, ни кэш не опрашиваются.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (int64, error) {
	const op = "service.auth.Authenticate"

	if accessToken == "" {
		return 0, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	uid, err := s.tokens.Validate(accessToken, models.TokenKindAccess)
	if err != nil {
		log.From(ctx).Debug("access_token_rejected", slog.String("reason", err.Error()))
		return 0, fmt.Errorf("%s: %w: %w", op, ErrInvalidToken, err)
	}

	return uid, nil
}

// Logout удаляет дескриптор отзыва и снимок профиля. Идемпотентен:
// отсутствие записей не ошибка. Сбой кэша возвращается вызывающему,
// потому что выход в этом случае не подтверждён.
func (s *Service) Logout(ctx context.Context, userID int64) (err error) {
	const op = "service.auth.Logout"

	defer func() { s.observe("logout", err) }()

	if err := s.cache.Delete(ctx, s.keys.Revocation(userID), s.keys.Profile(userID)); err != nil {
		log.From(ctx).Error("logout_cache_delete_failed",
			slog.String("op", op),
			slog.Int64("user_id", userID),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("%s: %w", op, unavailable(err))
	}

	log.From(ctx).Info("user_logged_out", slog.Int64("user_id", userID))

	return nil
}

// EnsureUser создаёт пользователя, если имя и e-mail свободны.
// Возвращает true, если пользователь создан; конфликт не считается ошибкой.
func (s *Service) EnsureUser(ctx context.Context, username, email, password string) (bool, error) {
	const op = "service.auth.EnsureUser"

	_, err := s.Register(ctx, username, email, password)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrConflict):
		return false, nil
	default:
		return false, fmt.Errorf("%s: %w", op, err)
	}
}
