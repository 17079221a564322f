// Package errors carries hy3d's application error types: CLI errors tagged
// with a category, and the JSON error envelope returned by the HTTP server.
package errors

import (
	"context"
	"errors"
	"fmt"
)

// Category classifies an application error.
type Category string

const (
	CategoryInternal        Category = "internal"
	CategoryInvalidInput    Category = "invalid_input"
	CategoryExternalService Category = "external_service"
	CategoryNotFound        Category = "not_found"
)

// AppError is an error with a category and an optional cause.
type AppError struct {
	Category Category
	Message  string
	Err      error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *AppError) Unwrap() error { return e.Err }

// NewExternalServiceError reports an unreachable or failing remote service.
func NewExternalServiceError(message string) error {
	return &AppError{Category: CategoryExternalService, Message: message}
}

// NewInvalidInputError reports bad user input.
func NewInvalidInputError(message string) error {
	return &AppError{Category: CategoryInvalidInput, Message: message}
}

// WrapInternal wraps err as an internal error. A canceled context is
// returned unchanged so callers can still match context.Canceled.
func WrapInternal(ctx context.Context, err error, message string) error {
	if err == nil {
		return nil
	}
	if ctx != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return err
	}
	return &AppError{Category: CategoryInternal, Message: message, Err: err}
}

// CategoryOf returns the category of the first AppError in err's chain, or
// CategoryInternal.
func CategoryOf(err error) Category {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Category
	}
	return CategoryInternal
}
