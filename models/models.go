package models

// User is a row of the userinfo table.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Password string `json:"-"` // stored credential, hashed or plaintext depending on the scheme
}
