package auth

import "github.com/google/uuid"

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID   uint
	AuthID   uuid.UUID
	Email    string
	Role     Role
	Metadata map[string]interface{}
}
