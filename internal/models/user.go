package models

import "time"

// User - учётная запись в хранилище.
// PasswordHash никогда не покидает сервисный слой.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Profile - публичное представление пользователя.
// Именно эта структура сериализуется в кэш профилей и отдаётся клиенту.
type Profile struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Profile возвращает публичный снимок пользователя.
func (u *User) Profile() Profile {
	return Profile{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}
