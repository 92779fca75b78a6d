package users

import (
	"time"

	"github.com/praxis-platform/praxis/internal/shared"
)

// User represents a user account for management.
type User struct {
	ID        int64                `json:"id"`
	Username  string               `json:"username"`
	Email     string               `json:"email"`
	Status    shared.AccountStatus `json:"status"`
	Roles     []string             `json:"roles,omitempty"`
	CreatedAt time.Time            `json:"createdAt"`
	UpdatedAt time.Time            `json:"updatedAt"`
}
