package domain

import "time"

// User represents an authenticated account. The ID is the subject issued by
// the external identity provider.
type User struct {
	ID        string
	Email     string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Identity is the verified caller extracted from a bearer token.
type Identity struct {
	Subject string
	Email   string
	Name    string
}
