package service

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"
)

const (
	minUsernameLen = 3
	maxUsernameLen = 80
	maxEmailLen    = 120
	minPasswordLen = 6
	// bcrypt не принимает пароли длиннее 72 байт; предел общий для всех алгоритмов,
	// чтобы смена алгоритма не меняла правила регистрации.
	maxPasswordBytes = 72
)

type registration struct {
	username string
	email    string
	password string
}

// validateRegistration проверяет поля регистрации.
// username и email обрезаются по краям, email приводится к нижнему регистру;
// пароль не изменяется.
func validateRegistration(username, email, password string) (registration, error) {
	const op = "service.validate.validateRegistration"

	r := registration{
		username: strings.TrimSpace(username),
		email:    strings.ToLower(strings.TrimSpace(email)),
		password: password,
	}

	if r.username == "" || r.email == "" || r.password == "" {
		return r, fmt.Errorf("%s: username, email and password are required: %w", op, ErrInvalidInput)
	}

	if n := utf8.RuneCountInString(r.username); n < minUsernameLen || n > maxUsernameLen {
		return r, fmt.Errorf("%s: %w", op, ErrInvalidUsername)
	}

	if err := validateEmail(r.email); err != nil {
		return r, fmt.Errorf("%s: %w", op, err)
	}

	if utf8.RuneCountInString(r.password) < minPasswordLen {
		return r, fmt.Errorf("%s: %w", op, ErrWeakPassword)
	}

	if len(r.password) > maxPasswordBytes {
		return r, fmt.Errorf("%s: %w", op, ErrPasswordTooLong)
	}

	return r, nil
}

// validateEmail принимает только голый адрес без отображаемого имени.
func validateEmail(email string) error {
	if len(email) > maxEmailLen {
		return ErrInvalidEmail
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrInvalidEmail
	}

	return nil
}
