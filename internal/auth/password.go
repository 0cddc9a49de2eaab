package auth

import (
	"errors"

	"github.com/alexedwards/argon2id"
)

// MinPasswordLength matches the sign-up and admin registration forms.
const MinPasswordLength = 8

var ErrPasswordTooShort = errors.New("password too short")

var DefaultPasswordParams = &argon2id.Params{
	Memory:      19 * 1024,
	Iterations:  2,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

func HashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", ErrPasswordTooShort
	}
	return argon2id.CreateHash(password, DefaultPasswordParams)
}

func ComparePassword(password, hash string) (bool, error) {
	return argon2id.ComparePasswordAndHash(password, hash)
}
