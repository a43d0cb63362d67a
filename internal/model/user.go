package model

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

type CreateUserParams struct {
	Name         string
	Email        string
	PasswordHash string
}

// ValidateRegistration checks the raw registration input and returns every
// violation found.
func ValidateRegistration(name, email, password string) error {
	var v ValidationErrors
	ValidateName(&v, name)
	ValidateEmail(&v, email)
	ValidatePassword(&v, password)
	return v.OrNil()
}
