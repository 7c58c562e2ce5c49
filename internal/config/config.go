// config предоставляет структуру конфигурации сервиса и функции
// загрузки из файла/переменных окружения с предсказуемым приоритетом.
//
// Именованные профили (local/dev/prod) заданы таблицей пресетов: значения,
// не указанные в файле и окружении, берутся из пресета выбранного Env.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Окружения.
const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// Драйверы хранилища учётных записей.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Алгоритмы хэширования паролей.
const (
	AlgBcrypt   = "bcrypt"
	AlgArgon2id = "argon2id"
)

// ErrInvalidConfig - конфигурация прочитана, но не проходит проверку.
var ErrInvalidConfig = errors.New("invalid config")

// Config - корневая конфигурация сервиса.
// Источники значений (по убыванию приоритета):
//  1. явный путь через флаг --config;
//  2. путь в переменной окружения CONFIG_PATH;
//  3. файл local.yaml из рабочей директории;
//  4. переменные окружения (cleanenv).
//
// Незаданные TTL и параметры логирования дополняются из профиля Env.
type Config struct {
	Env       string          `yaml:"env" env:"ENV" env-default:"local"`
	HTTP      HTTPConfig      `yaml:"http"`
	GRPC      GRPCConfig      `yaml:"grpc"`
	Auth      AuthConfig      `yaml:"auth"`
	Cache     CacheConfig     `yaml:"cache"`
	DB        DBConfig        `yaml:"db"`
	Password  PasswordConfig  `yaml:"password"`
	Timeouts  TimeoutConfig   `yaml:"timeouts"`
	Bootstrap BootstrapConfig `yaml:"bootstrap"`

	// Log заполняется из профиля, в файле не задаётся.
	Log LogConfig `yaml:"-"`
}

// TimeoutConfig - таймауты сервиса.
type TimeoutConfig struct {
	Service  time.Duration `yaml:"service" env:"SERVICE_TIMEOUT" env-default:"5s"`
	Shutdown time.Duration `yaml:"shutdown" env:"SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// HTTPConfig - сетевые настройки HTTP-сервера.
type HTTPConfig struct {
	Host string `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"HTTP_PORT" env-default:"5000"`
}

// Addr возвращает адрес в формате host:port.
func (h HTTPConfig) Addr() string {
	return net.JoinHostPort(h.Host, h.Port)
}

// GRPCConfig - адрес gRPC health-сервера. Пустой Port отключает сервер.
type GRPCConfig struct {
	Host string `yaml:"host" env:"GRPC_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"GRPC_PORT"`
	// ProbeInterval - период опроса хранилища и кэша для статуса health.
	ProbeInterval time.Duration `yaml:"probe_interval" env:"GRPC_HEALTH_PROBE_INTERVAL" env-default:"10s"`
}

// Enabled сообщает, нужно ли поднимать gRPC health-сервер.
func (g GRPCConfig) Enabled() bool { return g.Port != "" }

// Addr возвращает адрес в формате host:port.
func (g GRPCConfig) Addr() string {
	return net.JoinHostPort(g.Host, g.Port)
}

// AuthConfig содержит параметры выпуска и валидации токенов.
type AuthConfig struct {
	JWTSecret       string        `yaml:"jwt_secret" env:"JWT_SECRET" env-required:"true"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl" env:"ACCESS_TOKEN_TTL"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl" env:"REFRESH_TOKEN_TTL"`
	Leeway          time.Duration `yaml:"leeway" env:"JWT_LEEWAY" env-default:"0s"`
	Issuer          string        `yaml:"issuer" env:"ISSUER" env-default:"auth-service"`
	Audience        []string      `yaml:"audience" env:"AUDIENCE" env-default:"auth-api"`
}

// CacheConfig - подключение к Redis и TTL записей сессионного кэша.
type CacheConfig struct {
	RedisURL  string `yaml:"redis_url" env:"REDIS_URL" env-required:"true"`
	KeyPrefix string `yaml:"key_prefix" env:"CACHE_KEY_PREFIX"`
	// ProfileTTL - время жизни снимка профиля.
	ProfileTTL time.Duration `yaml:"profile_ttl" env:"PROFILE_CACHE_TTL"`
	// RevocationTTL - время жизни дескриптора refresh-токена.
	// По умолчанию совпадает с RefreshTokenTTL и не может его превышать.
	RevocationTTL time.Duration `yaml:"revocation_ttl" env:"REVOCATION_TTL"`
}

// DBConfig - настройки хранилища учётных записей.
type DBConfig struct {
	Driver      string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"postgres"`
	DatabaseURL string `yaml:"db_url" env:"DATABASE_URL"`
	Migrate     bool   `yaml:"migrate" env:"DB_MIGRATE" env-default:"true"`
}

// PasswordConfig - параметры хэширования паролей.
type PasswordConfig struct {
	Algorithm  string `yaml:"algorithm" env:"PASSWORD_ALGORITHM" env-default:"bcrypt"`
	BcryptCost int    `yaml:"bcrypt_cost" env:"BCRYPT_COST"`
}

// BootstrapConfig - начальный пользователь, создаваемый при старте,
// если такого ещё нет. Пустой Username отключает создание.
type BootstrapConfig struct {
	Username string `yaml:"username" env:"BOOTSTRAP_USERNAME"`
	Email    string `yaml:"email" env:"BOOTSTRAP_EMAIL"`
	Password string `yaml:"password" env:"BOOTSTRAP_PASSWORD"`
}

// Enabled сообщает, нужно ли создавать начального пользователя.
func (b BootstrapConfig) Enabled() bool { return b.Username != "" }

// LogConfig - параметры slog.
type LogConfig struct {
	Level slog.Level
	JSON  bool
}

// Profile - пресет значений по умолчанию для окружения.
type Profile struct {
	Log             LogConfig
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	ProfileTTL      time.Duration
	BcryptCost      int
}

var profiles = map[string]Profile{
	EnvLocal: {
		Log:             LogConfig{Level: slog.LevelDebug},
		AccessTokenTTL:  20 * time.Second,
		RefreshTokenTTL: 7 * 24 * time.Hour,
		ProfileTTL:      time.Hour,
		BcryptCost:      10,
	},
	EnvDev: {
		Log:             LogConfig{Level: slog.LevelDebug, JSON: true},
		AccessTokenTTL:  20 * time.Second,
		RefreshTokenTTL: 7 * 24 * time.Hour,
		ProfileTTL:      time.Hour,
		BcryptCost:      10,
	},
	EnvProd: {
		Log:             LogConfig{Level: slog.LevelInfo, JSON: true},
		AccessTokenTTL:  20 * time.Second,
		RefreshTokenTTL: 7 * 24 * time.Hour,
		ProfileTTL:      time.Hour,
		BcryptCost:      12,
	},
}

// ProfileFor возвращает пресет окружения; неизвестное окружение получает local.
func ProfileFor(env string) Profile {
	if p, ok := profiles[env]; ok {
		return p
	}

	return profiles[EnvLocal]
}

// applyProfile дополняет незаданные значения из профиля и согласует TTL
// дескриптора отзыва с TTL refresh-токена.
func (c *Config) applyProfile() {
	p := ProfileFor(c.Env)

	c.Log = p.Log
	if c.Auth.AccessTokenTTL == 0 {
		c.Auth.AccessTokenTTL = p.AccessTokenTTL
	}
	if c.Auth.RefreshTokenTTL == 0 {
		c.Auth.RefreshTokenTTL = p.RefreshTokenTTL
	}
	if c.Cache.ProfileTTL == 0 {
		c.Cache.ProfileTTL = p.ProfileTTL
	}
	if c.Cache.RevocationTTL == 0 || c.Cache.RevocationTTL > c.Auth.RefreshTokenTTL {
		c.Cache.RevocationTTL = c.Auth.RefreshTokenTTL
	}
	if c.Password.BcryptCost == 0 {
		c.Password.BcryptCost = p.BcryptCost
	}
}

// Validate проверяет согласованность значений после наложения профиля.
func (c *Config) Validate() error {
	const op = "config.Validate"

	switch {
	case c.Auth.JWTSecret == "":
		return fmt.Errorf("%s: %w: jwt_secret is empty", op, ErrInvalidConfig)
	case c.Auth.AccessTokenTTL <= 0 || c.Auth.RefreshTokenTTL <= 0:
		return fmt.Errorf("%s: %w: token ttl must be positive", op, ErrInvalidConfig)
	case c.Cache.ProfileTTL <= 0 || c.Cache.RevocationTTL <= 0:
		return fmt.Errorf("%s: %w: cache ttl must be positive", op, ErrInvalidConfig)
	case c.Auth.Leeway < 0:
		return fmt.Errorf("%s: %w: leeway must not be negative", op, ErrInvalidConfig)
	case c.Cache.RedisURL == "":
		return fmt.Errorf("%s: %w: redis_url is empty", op, ErrInvalidConfig)
	case c.GRPC.Enabled() && c.GRPC.ProbeInterval <= 0:
		return fmt.Errorf("%s: %w: grpc probe_interval must be positive", op, ErrInvalidConfig)
	}

	switch c.DB.Driver {
	case DriverPostgres:
		if c.DB.DatabaseURL == "" {
			return fmt.Errorf("%s: %w: db_url is required for postgres driver", op, ErrInvalidConfig)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("%s: %w: unknown storage driver %q", op, ErrInvalidConfig, c.DB.Driver)
	}

	switch c.Password.Algorithm {
	case AlgBcrypt, AlgArgon2id:
	default:
		return fmt.Errorf("%s: %w: unknown password algorithm %q", op, ErrInvalidConfig, c.Password.Algorithm)
	}

	if c.Bootstrap.Enabled() && (c.Bootstrap.Email == "" || c.Bootstrap.Password == "") {
		return fmt.Errorf("%s: %w: bootstrap user requires email and password", op, ErrInvalidConfig)
	}

	return nil
}

// MustLoad - обёртка над Load с panic при ошибке.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}

	return cfg
}

// Load загружает конфигурацию по приоритету:
// 1) явный путь; 2) CONFIG_PATH; 3) ./local.yaml; 4) ENV.
// ВАЖНО: после чтения файла накладываем ENV-переменные поверх значений из YAML,
// затем дополняем значения из профиля и валидируем результат.
func Load(path string) (*Config, error) {
	cfg, err := read(path)
	if err != nil {
		return nil, err
	}

	cfg.applyProfile()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func read(path string) (*Config, error) {
	var cfg Config

	// чтение файла + overlay ENV.
	tryRead := func(p string) (*Config, error) {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", p, err)
		}

		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}

		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to overlay env: %w", err)
		}

		return &cfg, nil
	}

	// 1) Явный путь.
	if path != "" {
		return tryRead(path)
	}

	// 2) CONFIG_PATH.
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return tryRead(envPath)
	}

	// 3) ./local.yaml.
	if _, err := os.Stat("local.yaml"); err == nil {
		return tryRead("local.yaml")
	}

	// 4) Только ENV.
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", err)
	}

	return &cfg, nil
}
