package domain

import "time"

type User struct {
	ID           string
	Username     string
	Email        string
	Name         string // display name
	PasswordHash string // bcrypt encoded
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
