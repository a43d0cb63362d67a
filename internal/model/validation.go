package model

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// FieldError describes a single constraint violation on one input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors accumulates every violation found rather than stopping
// at the first one, so callers can report all problems at once.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (v *ValidationErrors) add(field, message string) {
	*v = append(*v, FieldError{Field: field, Message: message})
}

// OrNil returns the accumulated list as an error, or nil when empty.
func (v ValidationErrors) OrNil() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

const (
	NameMinLen     = 3
	NameMaxLen     = 30
	EmailMinLen    = 8
	EmailMaxLen    = 50
	PasswordMinLen = 8
	PasswordMaxLen = 72
	ContentMaxLen  = 300
)

func ValidateName(v *ValidationErrors, name string) {
	n := utf8.RuneCountInString(name)
	if n < NameMinLen || n > NameMaxLen {
		v.add("name", fmt.Sprintf("must be %d to %d characters", NameMinLen, NameMaxLen))
	}
}

func ValidateEmail(v *ValidationErrors, email string) {
	n := len(email)
	if n < EmailMinLen || n > EmailMaxLen {
		v.add("email", fmt.Sprintf("must be %d to %d characters", EmailMinLen, EmailMaxLen))
	}
	if !emailRegex.MatchString(email) {
		v.add("email", "must be a valid email address")
	}
}

func ValidatePassword(v *ValidationErrors, password string) {
	n := len(password)
	if n < PasswordMinLen || n > PasswordMaxLen {
		v.add("password", fmt.Sprintf("must be %d to %d characters", PasswordMinLen, PasswordMaxLen))
	}
}

func ValidateContent(v *ValidationErrors, content string) {
	if strings.TrimSpace(content) == "" {
		v.add("content", "must not be blank")
	}
	if utf8.RuneCountInString(content) > ContentMaxLen {
		v.add("content", fmt.Sprintf("must be at most %d characters", ContentMaxLen))
	}
}
