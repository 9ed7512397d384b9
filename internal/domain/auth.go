package domain

import "time"

// ============================================================
// Users & authentication
// ============================================================

// Roles accepted at registration.
var ValidRoles = []string{"user", "customer", "cashier", "admin"}

// User is a POS operator or customer account.
// PasswordHash never leaves the backend.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	IsActive     bool      `json:"isActive"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt,omitempty"`
}

// RegisterRequest is the POST /api/auth/register payload.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role,omitempty"`
}

// LoginRequest is the POST /api/auth/login payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the authenticated user and a bearer token.
type LoginResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

// AccessClaims are the validated JWT claims for a request.
type AccessClaims struct {
	Sub  string `json:"sub"`
	Role string `json:"role"`
}
