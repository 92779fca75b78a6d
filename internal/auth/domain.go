package auth

import (
	"time"

	"github.com/praxis-platform/praxis/internal/shared"
)

// User represents an authenticated user account.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Status       shared.AccountStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
