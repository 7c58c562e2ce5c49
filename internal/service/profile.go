package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pribylovaa/auth-session-service/internal/metrics"
	"github.com/pribylovaa/auth-session-service/internal/models"
	"github.com/pribylovaa/auth-session-service/internal/pkg/log"
	"github.com/pribylovaa/auth-session-service/internal/storage"
)

// GetProfile возвращает публичный профиль по схеме cache-aside:
// попадание отдаётся из кэша без обращения к хранилищу, промах загружает
// пользователя и заново кладёт снимок в кэш. Ошибка или мусор в кэше
// трактуются как промах.
func (s *Service) GetProfile(ctx context.Context, userID int64) (_ *models.Profile, err error) {
	const op = "service.profile.GetProfile"

	defer func() { s.observe("profile", err) }()

	lg := log.From(ctx)

	if p, ok := s.cachedProfile(ctx, userID); ok {
		return p, nil
	}

	user, err := s.storage.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}

		lg.Error("user_lookup_failed", slog.String("op", op), slog.String("err", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, unavailable(err))
	}

	profile := user.Profile()
	s.cacheProfile(ctx, profile)

	return &profile, nil
}

func (s *Service) cachedProfile(ctx context.Context, userID int64) (*models.Profile, bool) {
	const op = "service.profile.cachedProfile"

	lg := log.From(ctx)

	raw, ok, err := s.cache.Get(ctx, s.keys.Profile(userID))
	if err != nil {
		s.metrics.ProfileCache(metrics.CacheError)
		lg.Warn("profile_cache_read_failed",
			slog.String("op", op),
			slog.Int64("user_id", userID),
			slog.String("err", err.Error()),
		)
		return nil, false
	}

	if !ok {
		s.metrics.ProfileCache(metrics.CacheMiss)
		lg.Debug("profile_cache_miss", slog.Int64("user_id", userID))
		return nil, false
	}

	var p models.Profile
	if err := json.Unmarshal(raw, &p); err != nil || p.ID != userID {
		s.metrics.ProfileCache(metrics.CacheError)
		lg.Warn("profile_cache_corrupted", slog.String("op", op), slog.Int64("user_id", userID))
		return nil, false
	}

	s.metrics.ProfileCache(metrics.CacheHit)

	return &p, true
}

// cacheProfile записывает снимок профиля. Ошибки только логируются.
func (s *Service) cacheProfile(ctx context.Context, p models.Profile) {
	const op = "service.profile.cacheProfile"

	raw, err := json.Marshal(p)
	if err == nil {
		err = s.cache.Put(ctx, s.keys.Profile(p.ID), raw, s.profileTTL)
	}

	if err != nil {
		log.From(ctx).Warn("profile_cache_write_failed",
			slog.String("op", op),
			slog.Int64("user_id", p.ID),
			slog.String("err", err.Error()),
		)
	}
}
