package domain

import "time"

// User is a registered account. Email is unique case-insensitively and is
// stored lowercased. PasswordHash is a bcrypt hash; the plaintext never
// leaves the auth service.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}
