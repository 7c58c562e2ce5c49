package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang/mock/gomock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/pribylovaa/auth-session-service/internal/cache"
	"github.com/pribylovaa/auth-session-service/internal/config"
	"github.com/pribylovaa/auth-session-service/internal/metrics"
	"github.com/pribylovaa/auth-session-service/internal/models"
	"github.com/pribylovaa/auth-session-service/internal/password"
	"github.com/pribylovaa/auth-session-service/internal/storage"
	"github.com/pribylovaa/auth-session-service/internal/token"
	"github.com/pribylovaa/auth-session-service/mocks"
)

// Unit-тесты координатора:
//   - хранилище - gomock (mocks.MockStorage): отсутствие EXPECT означает
//     «ни одного обращения к хранилищу»;
//   - кэш - настоящий go-redis поверх miniredis (TTL через FastForward)
//     либо mocks.MockSessionCache для сценариев сбоя;
//   - токены - настоящий token.Issuer с управляемыми часами.

func testAuthCfg() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:       "unit-test-secret",
		AccessTokenTTL:  20 * time.Second,
		RefreshTokenTTL: 7 * 24 * time.Hour,
		Issuer:          "auth-service",
		Audience:        []string{"auth-api"},
	}
}

func testCacheCfg() config.CacheConfig {
	return config.CacheConfig{
		ProfileTTL:    3600 * time.Second,
		RevocationTTL: 7 * 24 * time.Hour,
	}
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	svc    *Service
	st     *mocks.MockStorage
	mr     *miniredis.Miniredis
	issuer *token.Issuer
	clk    *testClock
	hasher *password.Multi
}

func newTestHasher(t *testing.T) *password.Multi {
	t.Helper()
	h, err := password.New(config.PasswordConfig{Algorithm: config.AlgBcrypt, BcryptCost: bcrypt.MinCost})
	require.NoError(t, err)
	return h
}

// newEnv - сервис с mock-хранилищем и кэшем на miniredis.
func newEnv(t *testing.T) *testEnv {
	t.Helper()

	ctrl := gomock.NewController(t)
	st := mocks.NewMockStorage(ctrl)

	mr := miniredis.RunT(t)
	rc := cache.NewRedisFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = rc.Close() })

	clk := &testClock{now: time.Now().UTC()}
	iss := token.NewIssuer(testAuthCfg(), token.WithClock(clk.Now))
	h := newTestHasher(t)

	svc := New(st, rc, h, iss, testCacheCfg(), WithMetrics(metrics.New(prometheus.NewRegistry())))

	return &testEnv{svc: svc, st: st, mr: mr, issuer: iss, clk: clk, hasher: h}
}

// newEnvWithCache - сервис с mock-хранилищем и mock-кэшем.
func newEnvWithCache(t *testing.T) (*Service, *mocks.MockStorage, *mocks.MockSessionCache, *token.Issuer) {
	t.Helper()

	ctrl := gomock.NewController(t)
	st := mocks.NewMockStorage(ctrl)
	c := mocks.NewMockSessionCache(ctrl)
	iss := token.NewIssuer(testAuthCfg())

	return New(st, c, newTestHasher(t), iss, testCacheCfg()), st, c, iss
}

func (e *testEnv) storedUser(t *testing.T, id int64, username, email, pw string) *models.User {
	t.Helper()
	h, err := e.hasher.Hash(pw)
	require.NoError(t, err)
	return &models.User{
		ID:           id,
		Username:     username,
		Email:        email,
		PasswordHash: h,
		CreatedAt:    time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		UpdatedAt:    time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

// login - успешный вход пользователя u через mock-хранилище.
func (e *testEnv) login(t *testing.T, u *models.User, pw string) *models.LoginResult {
	t.Helper()
	e.st.EXPECT().UserByUsername(gomock.Any(), u.Username).Return(u, nil)
	res, err := e.svc.Login(context.Background(), u.Username, pw)
	require.NoError(t, err)
	return res
}

// ---------- Register ----------

func TestRegister_OK_CachesProfile(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	gomock.InOrder(
		e.st.EXPECT().UserByUsername(gomock.Any(), "alice").Return(nil, storage.ErrNotFound),
		e.st.EXPECT().UserByEmail(gomock.Any(), "alice@example.com").Return(nil, storage.ErrNotFound),
		e.st.EXPECT().CreateUser(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, u *models.User) error {
				require.Equal(t, "alice", u.Username)
				require.NotEqual(t, "secret1", u.PasswordHash)
				require.True(t, e.hasher.Verify("secret1", u.PasswordHash))
				u.ID = 1
				u.CreatedAt = created
				u.UpdatedAt = created
				return nil
			}),
	)

	p, err := e.svc.Register(context.Background(), " alice ", "Alice@Example.com", "secret1")
	require.NoError(t, err)
	require.Equal(t, models.Profile{ID: 1, Username: "alice", Email: "alice@example.com", CreatedAt: created}, *p)

	raw, err := e.mr.Get("user:1")
	require.NoError(t, err)
	var cached models.Profile
	require.NoError(t, json.Unmarshal([]byte(raw), &cached))
	require.Equal(t, *p, cached)
	require.Equal(t, 3600*time.Second, e.mr.TTL("user:1"))
	require.False(t, e.mr.Exists("refresh_token:1"), "регистрация не создаёт дескриптор отзыва")
}

func TestRegister_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name                      string
		username, email, password string
		want                      error
	}{
		{"missing_username", "", "a@example.com", "secret1", ErrInvalidInput},
		{"missing_email", "alice", "  ", "secret1", ErrInvalidInput},
		{"missing_password", "alice", "a@example.com", "", ErrInvalidInput},
		{"short_username", "al", "a@example.com", "secret1", ErrInvalidUsername},
		{"bad_email", "alice", "not-an-email", "secret1", ErrInvalidEmail},
		{"email_with_name", "alice", "Alice <a@example.com>", "secret1", ErrInvalidEmail},
		{"short_password", "alice", "a@example.com", "12345", ErrWeakPassword},
		{"long_password", "alice", "a@example.com", strings.Repeat("a", 73), ErrPasswordTooLong},
		{"long_password_multibyte", "alice", "a@example.com", strings.Repeat("я", 37), ErrPasswordTooLong},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := newEnv(t) // без EXPECT: хранилище не должно вызываться.
			_, err := e.svc.Register(context.Background(), tt.username, tt.email, tt.password)
			require.ErrorIs(t, err, tt.want)
			require.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestValidateRegistration_PasswordByteLimit(t *testing.T) {
	t.Parallel()

	_, err := validateRegistration("alice", "a@example.com", strings.Repeat("a", maxPasswordBytes))
	require.NoError(t, err)

	// 36 рун по 2 байта - ровно предел, 37 - уже больше.
	_, err = validateRegistration("alice", "a@example.com", strings.Repeat("я", 36))
	require.NoError(t, err)

	_, err = validateRegistration("alice", "a@example.com", strings.Repeat("a", maxPasswordBytes+1))
	require.ErrorIs(t, err, ErrPasswordTooLong)
}

func TestRegister_UsernameTaken_OnLookup(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	e.st.EXPECT().UserByUsername(gomock.Any(), "alice").Return(&models.User{ID: 1, Username: "alice"}, nil)

	_, err := e.svc.Register(context.Background(), "alice", "new@example.com", "secret1")
	require.ErrorIs(t, err, ErrUsernameTaken)
	require.ErrorIs(t, err, ErrConflict)
}

func TestRegister_EmailTaken_OnLookup(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	e.st.EXPECT().UserByUsername(gomock.Any(), "bob").Return(nil, storage.ErrNotFound)
	e.st.EXPECT().UserByEmail(gomock.Any(), "alice@example.com").Return(&models.User{ID: 1}, nil)

	_, err := e.svc.Register(context.Background(), "bob", "alice@example.com", "secret1")
	require.ErrorIs(t, err, ErrEmailTaken)
	require.ErrorIs(t, err, ErrConflict)
}

func TestRegister_CreateUserConflict_MapsToConflict(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		storeErr error
		want     error
	}{
		{storage.ErrUsernameTaken, ErrUsernameTaken},
		{storage.ErrEmailTaken, ErrEmailTaken},
		{storage.ErrAlreadyExists, ErrConflict},
	} {
		e := newEnv(t)
		e.st.EXPECT().UserByUsername(gomock.Any(), gomock.Any()).Return(nil, storage.ErrNotFound)
		e.st.EXPECT().UserByEmail(gomock.Any(), gomock.Any()).Return(nil, storage.ErrNotFound)
		e.st.EXPECT().CreateUser(gomock.Any(), gomock.Any()).Return(tc.storeErr)

		_, err := e.svc.Register(context.Background(), "carol", "carol@example.com", "secret1")
		require.ErrorIs(t, err, tc.want)
		require.ErrorIs(t, err, ErrConflict)
		require.False(t, e.mr.Exists("user:0"))
	}
}

func TestRegister_StoreErrors_Unavailable(t *testing.T) {
	t.Parallel()

	down := errors.New("db down")

	t.Run("lookup", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		e.st.EXPECT().UserByUsername(gomock.Any(), "dave").Return(nil, down)

		_, err := e.svc.Register(context.Background(), "dave", "dave@example.com", "secret1")
		require.ErrorIs(t, err, ErrStoreUnavailable)
		require.ErrorIs(t, err, down)
	})

	t.Run("create", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		e.st.EXPECT().UserByUsername(gomock.Any(), "dave").Return(nil, storage.ErrNotFound)
		e.st.EXPECT().UserByEmail(gomock.Any(), "dave@example.com").Return(nil, storage.ErrNotFound)
		e.st.EXPECT().CreateUser(gomock.Any(), gomock.Any()).Return(down)

		_, err := e.svc.Register(context.Background(), "dave", "dave@example.com", "secret1")
		require.ErrorIs(t, err, ErrStoreUnavailable)
	})
}

func TestRegister_CacheWriteFailure_Ignored(t *testing.T) {
	t.Parallel()

	svc, st, c, _ := newEnvWithCache(t)

	st.EXPECT().UserByUsername(gomock.Any(), "erin").Return(nil, storage.ErrNotFound)
	st.EXPECT().UserByEmail(gomock.Any(), "erin@example.com").Return(nil, storage.ErrNotFound)
	st.EXPECT().CreateUser(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, u *models.User) error {
		u.ID = 9
		return nil
	})
	c.EXPECT().Put(gomock.Any(), "user:9", gomock.Any(), 3600*time.Second).Return(cache.ErrUnavailable)

	p, err := svc.Register(context.Background(), "erin", "erin@example.com", "secret1")
	require.NoError(t, err)
	require.Equal(t, int64(9), p.ID)
}

// ---------- Login ----------

func TestLogin_OK_IssuesTokensAndWritesCache(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	u := e.storedUser(t, 5, "frank", "frank@example.com", "secret1")

	res := e.login(t, u, "secret1")

	uid, err := e.issuer.Validate(res.Tokens.AccessToken, models.TokenKindAccess)
	require.NoError(t, err)
	require.Equal(t, int64(5), uid)

	uid, err = e.issuer.Validate(res.Tokens.RefreshToken, models.TokenKindRefresh)
	require.NoError(t, err)
	require.Equal(t, int64(5), uid)

	require.Equal(t, e.clk.Now().Add(20*time.Second).Truncate(time.Second), res.Tokens.AccessExpiresAt)
	require.Equal(t, u.Profile(), res.Profile)

	handle, err := e.mr.Get("refresh_token:5")
	require.NoError(t, err)
	require.Equal(t, res.Tokens.RefreshToken, handle)
	require.Equal(t, 7*24*time.Hour, e.mr.TTL("refresh_token:5"))

	require.True(t, e.mr.Exists("user:5"))
	require.Equal(t, 3600*time.Second, e.mr.TTL("user:5"))
}

func TestLogin_UnknownUserAndWrongPassword_SameShape(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	u := e.storedUser(t, 5, "grace", "grace@example.com", "secret1")

	e.st.EXPECT().UserByUsername(gomock.Any(), "grace").Return(u, nil)
	_, errWrong := e.svc.Login(context.Background(), "grace", "wrong-pass")

	e.st.EXPECT().UserByUsername(gomock.Any(), "nobody").Return(nil, storage.ErrNotFound)
	_, errUnknown := e.svc.Login(context.Background(), "nobody", "wrong-pass")

	require.ErrorIs(t, errWrong, ErrInvalidCredentials)
	require.ErrorIs(t, errUnknown, ErrInvalidCredentials)
	require.ErrorIs(t, errWrong, ErrUnauthorized)
	require.Equal(t, errWrong.Error(), errUnknown.Error())

	require.False(t, e.mr.Exists("refresh_token:5"))
	require.False(t, e.mr.Exists("user:5"))
}

func TestLogin_MissingFields(t *testing.T) {
	t.Parallel()

	e := newEnv(t)

	_, err := e.svc.Login(context.Background(), "", "x")
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = e.svc.Login(context.Background(), "henry", "")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestLogin_StoreError(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	e.st.EXPECT().UserByUsername(gomock.Any(), "ivan").Return(nil, errors.New("conn reset"))

	_, err := e.svc.Login(context.Background(), "ivan", "secret1")
	require.ErrorIs(t, err, ErrStoreUnavailable)
	require.NotErrorIs(t, err, ErrUnauthorized)
}

func TestLogin_RevocationWriteFailure_FailsLogin(t *testing.T) {
	t.Parallel()

	svc, st, c, _ := newEnvWithCache(t)
	h := newTestHasher(t)
	digest, err := h.Hash("secret1")
	require.NoError(t, err)

	st.EXPECT().UserByUsername(gomock.Any(), "judy").
		Return(&models.User{ID: 3, Username: "judy", PasswordHash: digest}, nil)
	c.EXPECT().Put(gomock.Any(), "user:3", gomock.Any(), gomock.Any()).Return(nil)
	c.EXPECT().Put(gomock.Any(), "refresh_token:3", gomock.Any(), 7*24*time.Hour).Return(cache.ErrUnavailable)

	_, err = svc.Login(context.Background(), "judy", "secret1")
	require.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestLogin_ProfileWriteFailure_Ignored(t *testing.T) {
	t.Parallel()

	svc, st, c, _ := newEnvWithCache(t)
	h := newTestHasher(t)
	digest, err := h.Hash("secret1")
	require.NoError(t, err)

	st.EXPECT().UserByUsername(gomock.Any(), "ken").
		Return(&models.User{ID: 4, Username: "ken", PasswordHash: digest}, nil)
	c.EXPECT().Put(gomock.Any(), "user:4", gomock.Any(), gomock.Any()).Return(cache.ErrUnavailable)
	c.EXPECT().Put(gomock.Any(), "refresh_token:4", gomock.Any(), gomock.Any()).Return(nil)

	res, err := svc.Login(context.Background(), "ken", "secret1")
	require.NoError(t, err)
	require.NotEmpty(t, res.Tokens.RefreshToken)
}

// ---------- Refresh ----------

func TestRefresh_OK_NewAccessForSameSubject(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	u := e.storedUser(t, 7, "liam", "liam@example.com", "secret1")
	res := e.login(t, u, "secret1")

	e.clk.Advance(30 * time.Second) // старый access уже истёк.
	e.st.EXPECT().UserByID(gomock.Any(), int64(7)).Return(u, nil)

	grant, err := e.svc.Refresh(context.Background(), res.Tokens.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, res.Tokens.AccessToken, grant.AccessToken)

	uid, err := e.issuer.Validate(grant.AccessToken, models.TokenKindAccess)
	require.NoError(t, err)
	require.Equal(t, int64(7), uid)

	_, err = e.issuer.Validate(res.Tokens.AccessToken, models.TokenKindAccess)
	require.ErrorIs(t, err, token.ErrTokenExpired)

	// refresh-токен не ротируется.
	handle, err := e.mr.Get("refresh_token:7")
	require.NoError(t, err)
	require.Equal(t, res.Tokens.RefreshToken, handle)
}

func TestRefresh_RejectsAccessToken(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	u := e.storedUser(t, 8, "mia", "mia@example.com", "secret1")
	res := e.login(t, u, "secret1")

	_, err := e.svc.Refresh(context.Background(), res.Tokens.AccessToken)
	require.ErrorIs(t, err, ErrInvalidToken)
	require.ErrorIs(t, err, ErrUnauthorized)
	require.ErrorIs(t, err, token.ErrWrongKind)
}

func TestRefresh_EmptyOrGarbage(t *testing.T) {
	t.Parallel()

	e := newEnv(t)

	_, err := e.svc.Refresh(context.Background(), "")
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = e.svc.Refresh(context.Background(), "garbage")
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestRefresh_AfterLogout_Revoked(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	u := e.storedUser(t, 9, "noah", "noah@example.com", "secret1")
	res := e.login(t, u, "secret1")

	require.NoError(t, e.svc.Logout(context.Background(), 9))

	_, err := e.svc.Refresh(context.Background(), res.Tokens.RefreshToken)
	require.ErrorIs(t, err, ErrTokenRevoked)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestRefresh_SupersededBySecondLogin(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	u := e.storedUser(t, 10, "olivia", "olivia@example.com", "secret1")
	first := e.login(t, u, "secret1")
	second := e.login(t, u, "secret1")

	_, err := e.svc.Refresh(context.Background(), first.Tokens.RefreshToken)
	require.ErrorIs(t, err, ErrTokenRevoked)

	e.st.EXPECT().UserByID(gomock.Any(), int64(10)).Return(u, nil)
	_, err = e.svc.Refresh(context.Background(), second.Tokens.RefreshToken)
	require.NoError(t, err)
}

func TestRefresh_ExpiredRefreshToken(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	u := e.storedUser(t, 11, "paul", "paul@example.com", "secret1")
	res := e.login(t, u, "secret1")

	e.clk.Advance(7*24*time.Hour + time.Second)

	_, err := e.svc.Refresh(context.Background(), res.Tokens.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidToken)
	require.ErrorIs(t, err, token.ErrTokenExpired)
}

func TestRefresh_UserMissing_NotFound(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	rt, _, err := e.issuer.IssueRefresh(12)
	require.NoError(t, err)
	require.NoError(t, e.mr.Set("refresh_token:12", rt))

	e.st.EXPECT().UserByID(gomock.Any(), int64(12)).Return(nil, storage.ErrNotFound)

	_, err = e.svc.Refresh(context.Background(), rt)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRefresh_CacheError_FailsClosed(t *testing.T) {
	t.Parallel()

	svc, _, c, iss := newEnvWithCache(t)
	rt, _, err := iss.IssueRefresh(13)
	require.NoError(t, err)

	c.EXPECT().Get(gomock.Any(), "refresh_token:13").Return(nil, false, cache.ErrUnavailable)

	_, err = svc.Refresh(context.Background(), rt)
	require.ErrorIs(t, err, ErrStoreUnavailable)
}

// ---------- GetProfile ----------

// TestGetProfile_AfterLogin_ServedFromCache - ни одного обращения к хранилищу.
func TestGetProfile_AfterLogin_ServedFromCache(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	u := e.storedUser(t, 14, "quinn", "quinn@example.com", "secret1")
	e.login(t, u, "secret1")

	p, err := e.svc.GetProfile(context.Background(), 14)
	require.NoError(t, err)
	require.Equal(t, u.Profile(), *p)
}

func TestGetProfile_AfterTTL_RepopulatesFromStore(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	u := e.storedUser(t, 15, "rose", "rose@example.com", "secret1")
	e.login(t, u, "secret1")

	e.mr.FastForward(3601 * time.Second)
	require.False(t, e.mr.Exists("user:15"))

	e.st.EXPECT().UserByID(gomock.Any(), int64(15)).Return(u, nil).Times(1)

	p, err := e.svc.GetProfile(context.Background(), 15)
	require.NoError(t, err)
	require.Equal(t, u.Profile(), *p)
	require.True(t, e.mr.Exists("user:15"))

	// второе чтение снова из кэша.
	_, err = e.svc.GetProfile(context.Background(), 15)
	require.NoError(t, err)
}

func TestGetProfile_AfterLogout_FallsBackAndRepopulates(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	u := e.storedUser(t, 16, "sam", "sam@example.com", "secret1")
	e.login(t, u, "secret1")

	require.NoError(t, e.svc.Logout(context.Background(), 16))
	require.False(t, e.mr.Exists("user:16"))
	require.False(t, e.mr.Exists("refresh_token:16"))

	e.st.EXPECT().UserByID(gomock.Any(), int64(16)).Return(u, nil)

	p, err := e.svc.GetProfile(context.Background(), 16)
	require.NoError(t, err)
	require.Equal(t, u.Profile(), *p)
	require.True(t, e.mr.Exists("user:16"))
}

func TestGetProfile_NotFound(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	e.st.EXPECT().UserByID(gomock.Any(), int64(404)).Return(nil, storage.ErrNotFound)

	_, err := e.svc.GetProfile(context.Background(), 404)
	require.ErrorIs(t, err, ErrNotFound)
	require.False(t, e.mr.Exists("user:404"))
}

func TestGetProfile_CorruptedEntry_TreatedAsMiss(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	u := e.storedUser(t, 17, "tina", "tina@example.com", "secret1")
	require.NoError(t, e.mr.Set("user:17", "{not json"))

	e.st.EXPECT().UserByID(gomock.Any(), int64(17)).Return(u, nil)

	p, err := e.svc.GetProfile(context.Background(), 17)
	require.NoError(t, err)
	require.Equal(t, "tina", p.Username)

	raw, err := e.mr.Get("user:17")
	require.NoError(t, err)
	require.JSONEq(t, `{"id":17,"username":"tina","email":"tina@example.com","created_at":"2025-03-01T10:00:00Z"}`, raw)
}

func TestGetProfile_CacheError_FallsThroughToStore(t *testing.T) {
	t.Parallel()

	svc, st, c, _ := newEnvWithCache(t)
	u := &models.User{ID: 18, Username: "uma", Email: "uma@example.com"}

	c.EXPECT().Get(gomock.Any(), "user:18").Return(nil, false, cache.ErrUnavailable)
	st.EXPECT().UserByID(gomock.Any(), int64(18)).Return(u, nil)
	c.EXPECT().Put(gomock.Any(), "user:18", gomock.Any(), 3600*time.Second).Return(cache.ErrUnavailable)

	p, err := svc.GetProfile(context.Background(), 18)
	require.NoError(t, err)
	require.Equal(t, "uma", p.Username)
}

func TestGetProfile_StoreError(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	e.st.EXPECT().UserByID(gomock.Any(), int64(19)).Return(nil, errors.New("timeout"))

	_, err := e.svc.GetProfile(context.Background(), 19)
	require.ErrorIs(t, err, ErrStoreUnavailable)
}

// ---------- Logout / Authenticate / EnsureUser ----------

func TestLogout_Idempotent(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	require.NoError(t, e.svc.Logout(context.Background(), 20))
	require.NoError(t, e.svc.Logout(context.Background(), 20))
}

func TestLogout_CacheError(t *testing.T) {
	t.Parallel()

	svc, _, c, _ := newEnvWithCache(t)
	c.EXPECT().Delete(gomock.Any(), "refresh_token:21", "user:21").Return(cache.ErrUnavailable)

	err := svc.Logout(context.Background(), 21)
	require.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	at, _, err := e.issuer.IssueAccess(22)
	require.NoError(t, err)
	rt, _, err := e.issuer.IssueRefresh(22)
	require.NoError(t, err)

	uid, err := e.svc.Authenticate(context.Background(), at)
	require.NoError(t, err)
	require.Equal(t, int64(22), uid)

	_, err = e.svc.Authenticate(context.Background(), rt)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = e.svc.Authenticate(context.Background(), "")
	require.ErrorIs(t, err, ErrUnauthorized)

	e.clk.Advance(21 * time.Second)
	_, err = e.svc.Authenticate(context.Background(), at)
	require.ErrorIs(t, err, token.ErrTokenExpired)
}

func TestEnsureUser(t *testing.T) {
	t.Parallel()

	e := newEnv(t)

	e.st.EXPECT().UserByUsername(gomock.Any(), "admin").Return(nil, storage.ErrNotFound)
	e.st.EXPECT().UserByEmail(gomock.Any(), "admin@example.com").Return(nil, storage.ErrNotFound)
	e.st.EXPECT().CreateUser(gomock.Any(), gomock.Any()).Return(nil)

	created, err := e.svc.EnsureUser(context.Background(), "admin", "admin@example.com", "admin123")
	require.NoError(t, err)
	require.True(t, created)

	e.st.EXPECT().UserByUsername(gomock.Any(), "admin").Return(&models.User{ID: 1}, nil)

	created, err = e.svc.EnsureUser(context.Background(), "admin", "admin@example.com", "admin123")
	require.NoError(t, err)
	require.False(t, created)

	_, err = e.svc.EnsureUser(context.Background(), "ad", "admin@example.com", "admin123")
	require.ErrorIs(t, err, ErrInvalidInput)
}
