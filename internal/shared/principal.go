package shared

// AccountStatus enumerates user account states.
type AccountStatus string

const (
	StatusActive    AccountStatus = "ACTIVE"
	StatusInactive  AccountStatus = "INACTIVE"
	StatusSuspended AccountStatus = "SUSPENDED"
)

// Principal describes the authenticated actor for the duration of a request.
// It is built once by the authentication middleware and never mutated.
type Principal struct {
	UserID    int64
	Username  string
	SessionID string
	Status    AccountStatus
}
