package domain

import "time"

// MaxUsernameLength bounds User.Username.
const MaxUsernameLength = 50

// User is an account allowed to sign in. Only administrators may mutate spots or cancel reservations.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	IsAdmin      bool
	IsActive     bool
	CreatedAt    time.Time
}

// Principal is the already authenticated caller handed to the services.
type Principal struct {
	UserID   string
	Username string
	IsAdmin  bool
}
