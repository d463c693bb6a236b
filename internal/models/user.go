package models

// Profile is the per-user identity document stored alongside the balances.
type Profile struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	PasswordHash string `json:"passwordHash"`
	CreatedAt    int64  `json:"createdAt"` // unix millis
}

// User is the public view of a profile returned by the auth endpoints.
type User struct {
	Username string `json:"username" example:"jeysi"`
	Name     string `json:"name" example:"Jeysi Cruz"`
	Email    string `json:"email" example:"jeysi@example.com"`
}
