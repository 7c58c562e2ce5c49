package password

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Bcrypt - хэшер на bcrypt.
type Bcrypt struct {
	cost int
}

// NewBcrypt создаёт хэшер; cost вне допустимого диапазона заменяется на bcrypt.DefaultCost.
func NewBcrypt(cost int) *Bcrypt {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}

	return &Bcrypt{cost: cost}
}

// Hash хэширует пароль с помощью bcrypt.
func (b *Bcrypt) Hash(plain string) (string, error) {
	const op = "password.bcrypt.Hash"

	bytes, err := bcrypt.GenerateFromPassword([]byte(plain), b.cost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return string(bytes), nil
}

// Verify сравнивает пароль с хэшем.
func (b *Bcrypt) Verify(plain, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plain)) == nil
}
