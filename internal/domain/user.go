package domain

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Common validation errors
var (
	ErrEmptyUserID         = errors.New("user ID cannot be empty")
	ErrInvalidPhone        = errors.New("phone must be 10 or 11 digits")
	ErrInvalidNickname     = errors.New("nickname must be between 2 and 20 characters")
	ErrPasswordTooShort    = errors.New("password must be at least 8 characters long")
	ErrPasswordTooLong     = errors.New("password must be at most 72 characters long")
	ErrEmptyPassword       = errors.New("password cannot be empty")
	ErrEmptyHashedPassword = errors.New("hashed password cannot be empty")
)

const (
	minPasswordLength = 8
	// bcrypt ignores everything past 72 bytes.
	maxPasswordLength = 72
)

// User is a registered member who publishes and reacts to content.
type User struct {
	ID             uuid.UUID `json:"id"`
	Phone          string    `json:"-"`
	Nickname       string    `json:"nickname"`
	Password       string    `json:"-"` // plaintext, only set during registration
	HashedPassword string    `json:"-"`
	PushToken      string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewUser creates a User holding the plaintext password. The caller hashes it
// before the user is persisted.
func NewUser(phone, nickname, password string) (*User, error) {
	now := time.Now().UTC()
	user := &User{
		ID:        uuid.New(),
		Phone:     NormalizePhone(phone),
		Nickname:  strings.TrimSpace(nickname),
		Password:  password,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := user.Validate(); err != nil {
		return nil, err
	}
	return user, nil
}

// Validate checks if the User has valid data.
func (u *User) Validate() error {
	if u.ID == uuid.Nil {
		return ErrEmptyUserID
	}
	if !validPhone(u.Phone) {
		return ErrInvalidPhone
	}
	if n := utf8.RuneCountInString(u.Nickname); n < 2 || n > 20 {
		return ErrInvalidNickname
	}

	if u.Password != "" {
		return ValidatePassword(u.Password)
	}
	if u.HashedPassword == "" {
		return ErrEmptyPassword
	}
	return nil
}

// ValidatePassword checks the length rules for a plaintext password.
func ValidatePassword(password string) error {
	switch {
	case password == "":
		return ErrEmptyPassword
	case len(password) < minPasswordLength:
		return ErrPasswordTooShort
	case len(password) > maxPasswordLength:
		return ErrPasswordTooLong
	}
	return nil
}

// NormalizePhone strips separators so "010-1234-5678" and "01012345678" match.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r == '-' || r == ' ' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func validPhone(phone string) bool {
	if len(phone) < 10 || len(phone) > 11 {
		return false
	}
	for _, r := range phone {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
