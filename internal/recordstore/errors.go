package recordstore

import "errors"

var (
	// ErrInvalidKey means no access key matches the presented token.
	ErrInvalidKey = errors.New("invalid key")

	// ErrKeyExpired means the key exists but its expiry has passed.
	ErrKeyExpired = errors.New("key expired")

	// ErrMissingEmail means a write or login arrived without an email.
	ErrMissingEmail = errors.New("missing email")

	// ErrInvalidUserData means projects is not a JSON array or settings is not a JSON object.
	ErrInvalidUserData = errors.New("invalid user data")

	// ErrKeyGeneration means no unused token could be generated.
	ErrKeyGeneration = errors.New("could not generate a unique key")
)
