package utils

import (
	"regexp"
	"strings"

	"care4kids/internal/models"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// ValidateEmail checks if an email address is valid
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return models.ValidationError{Field: "email", Message: "email is required"}
	}
	if !emailRegex.MatchString(email) {
		return models.ValidationError{Field: "email", Message: "invalid email format"}
	}
	return nil
}

// ValidatePassword checks if a password meets requirements
func ValidatePassword(password string) error {
	if password == "" {
		return models.ValidationError{Field: "password", Message: "password is required"}
	}
	if len(password) < 8 {
		return models.ValidationError{Field: "password", Message: "password must be at least 8 characters"}
	}
	return nil
}

// ValidateName checks if a name is valid
func ValidateName(field, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.ValidationError{Field: field, Message: field + " is required"}
	}
	if len(name) < 2 {
		return models.ValidationError{Field: field, Message: field + " must be at least 2 characters"}
	}
	return nil
}
