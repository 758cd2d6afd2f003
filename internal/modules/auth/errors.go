package auth

import "errors"

var (
	ErrUsernameTooShort   = errors.New("username must be at least 3 characters")
	ErrPasswordTooShort   = errors.New("password must be at least 6 characters")
	ErrInvalidPhoneNumber = errors.New("invalid phone number")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrPhoneNumberTaken   = errors.New("phone number already registered")
	ErrUserNotFound       = errors.New("user not found")
	ErrWrongPassword      = errors.New("wrong password")
	// ErrRefreshTokenInvalid covers bad signature, expiry, a deleted user,
	// and a presented token that no longer matches the stored one.
	ErrRefreshTokenInvalid = errors.New("refresh token invalid")
)
