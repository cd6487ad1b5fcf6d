package models

import (
	"errors"
	"fmt"
	"strings"
)

// Application-wide standard errors
var (
	// Common Resource/DB Errors
	ErrNotFound = errors.New("resource not found") // General not found

	// Authentication / ownership
	ErrUnauthorized = errors.New("unauthorized") // Authentication required or failed
	ErrForbidden    = errors.New("forbidden")    // Authenticated, but lacks permission

	// Token Errors
	ErrTokenInvalid   = errors.New("token is invalid")
	ErrTokenMalformed = errors.New("token is malformed")
	ErrTokenExpired   = errors.New("token has expired")

	// Authoring Errors
	ErrValidation = errors.New("validation failed")

	// Concurrency
	ErrConcurrentUpdate = errors.New("play session was modified concurrently")

	// General Request/Server Errors
	ErrInternalServer = errors.New("internal server error")
	ErrBadRequest     = errors.New("bad request")
)

// Specific errors. Each one matches its generic sentinel via errors.Is.
var (
	ErrStoryNotFound     = fmt.Errorf("%w: story", ErrNotFound)
	ErrNodeNotFound      = fmt.Errorf("%w: story node", ErrNotFound)
	ErrChoiceNotFound    = fmt.Errorf("%w: choice at current node", ErrNotFound)
	ErrSessionNotFound   = fmt.Errorf("%w: play session", ErrNotFound)
	ErrSavedGameNotFound = fmt.Errorf("%w: saved game", ErrNotFound)

	ErrChoiceUnavailable = fmt.Errorf("%w: choice conditions are not satisfied", ErrForbidden)
	ErrSessionCompleted  = fmt.Errorf("%w: play session is already completed", ErrForbidden)

	ErrSessionLocked = fmt.Errorf("%w: play session is locked by another request", ErrConcurrentUpdate)
)

// ValidationError carries every problem found while validating a condition/effect tree.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return ErrValidation.Error()
	}
	return ErrValidation.Error() + ": " + strings.Join(e.Errors, "; ")
}

// Is lets errors.Is(err, ErrValidation) match a *ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
