package domain

import "time"

// User is an account that files complaint cases.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	DeviceToken  *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
