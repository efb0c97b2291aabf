package users

import "errors"

// Store errors.
var (
	ErrUserNotFound     = errors.New("user not found")
	ErrEmailExists      = errors.New("email already exists")
	ErrNoFieldsToUpdate = errors.New("no fields to update")
	ErrInvalidBirthDate = errors.New("birthDate must be an ISO date")
	ErrInvalidRole      = errors.New("role must be USER or ADMIN")
	ErrRoleNotAllowed   = errors.New("only administrators may assign the ADMIN role")
)
