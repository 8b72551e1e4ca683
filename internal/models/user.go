package models

// User represents an account row in the local store.
type User struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}
