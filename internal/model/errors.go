package model

import "errors"

var (
	// Principal related errors
	ErrUserNotFound = errors.New("user not found")

	// Role and permission related errors
	ErrRoleNotFound       = errors.New("role not found")
	ErrPermissionNotFound = errors.New("permission not found")

	// Token related errors
	ErrTokenNotFound  = errors.New("token not found")
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenSignature = errors.New("token signature invalid")

	// Order related errors
	ErrOrderNotFound = errors.New("order not found")

	// Store level errors
	ErrDuplicate = errors.New("duplicate record")

	// Generic errors
	ErrInvalidInput = errors.New("invalid input")
)
