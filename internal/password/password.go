// password - односторонние солёные хэши паролей.
//
// Поддерживаются bcrypt (по умолчанию) и argon2id в формате PHC.
// Verify определяет алгоритм по префиксу дайджеста, поэтому смена
// алгоритма в конфигурации не ломает вход ранее созданных пользователей.
package password

import (
	"fmt"
	"strings"

	"github.com/pribylovaa/auth-session-service/internal/config"
)

// Hasher - контракт хэширования паролей.
type Hasher interface {
	// Hash возвращает солёный дайджест пароля.
	Hash(plain string) (string, error)
	// Verify сравнивает пароль с дайджестом. Любая ошибка разбора - false.
	Verify(plain, digest string) bool
}

// Multi хэширует выбранным алгоритмом и проверяет любым из поддерживаемых.
type Multi struct {
	primary Hasher
	bcrypt  *Bcrypt
	argon   *Argon2id

	// dummy - дайджест основного алгоритма для VerifyDummy.
	dummy string
}

// New собирает Hasher по конфигурации.
func New(cfg config.PasswordConfig) (*Multi, error) {
	const op = "password.New"

	m := &Multi{
		bcrypt: NewBcrypt(cfg.BcryptCost),
		argon:  NewArgon2id(DefaultArgon2Params),
	}

	switch cfg.Algorithm {
	case config.AlgBcrypt, "":
		m.primary = m.bcrypt
	case config.AlgArgon2id:
		m.primary = m.argon
	default:
		return nil, fmt.Errorf("%s: unsupported algorithm %q", op, cfg.Algorithm)
	}

	dummy, err := m.primary.Hash("timing-equalizer")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	m.dummy = dummy

	return m, nil
}

// Hash хэширует основным алгоритмом.
func (m *Multi) Hash(plain string) (string, error) {
	return m.primary.Hash(plain)
}

// Verify выбирает алгоритм по префиксу дайджеста.
func (m *Multi) Verify(plain, digest string) bool {
	switch {
	case strings.HasPrefix(digest, argon2Prefix):
		return m.argon.Verify(plain, digest)
	case strings.HasPrefix(digest, "$2"):
		return m.bcrypt.Verify(plain, digest)
	default:
		return false
	}
}

// VerifyDummy выполняет проверку против фиктивного дайджеста.
// Вызывается, когда пользователь не найден, чтобы время ответа
// не выдавало существование учётной записи.
func (m *Multi) VerifyDummy(plain string) {
	_ = m.primary.Verify(plain, m.dummy)
}
