package service

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrOtpRequired signals that the password was accepted and a second
	// factor is still missing. Login reports it as StatePendingSecondFactor.
	ErrOtpRequired  = errors.New("two-factor code required")
	ErrInvalidOtp   = errors.New("invalid two-factor code")
	ErrUnauthorized = errors.New("authentication required")
	ErrForbidden    = errors.New("permission denied")
	ErrInvalidRole  = errors.New("invalid role")
	ErrNotFound     = errors.New("not found")
	ErrEmailInUse   = errors.New("email already in use")
	ErrInvalidCSV   = errors.New("invalid csv file")
	// ErrInvalidInput wraps form validation failures.
	ErrInvalidInput = errors.New("invalid input")
	ErrEmptyComment = fmt.Errorf("%w: comment can not be empty", ErrInvalidInput)
)
