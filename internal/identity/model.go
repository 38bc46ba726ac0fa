package identity

import "time"

// User represents a registered account holder.
type User struct {
	ID        string
	Phone     string
	Name      string
	PINHash   []byte
	CreatedAt time.Time
}

// Credentials carries signup and login input.
type Credentials struct {
	Phone string
	Name  string
	PIN   string
}
