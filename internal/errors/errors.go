package errors

import (
	"errors"
	"fmt"
)

var (
	ErrLinkNotFound       = errors.New("link not found")
	ErrShortCodeExists    = errors.New("short code already exists")
	ErrEmptyURL           = errors.New("URL is required")
	ErrInvalidShortCode   = errors.New("invalid short code")
	ErrCodeSpaceExhausted = errors.New("no free short code found")
)

type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error in field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func NewValidationError(field, message string, err error) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Err:     err,
	}
}

// BusinessError carries a stable Code for clients; Cause is internal and never rendered.
type BusinessError struct {
	Code    string
	Message string
	Cause   error
}

func (e *BusinessError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Cause
}

// Is matches any BusinessError with the same Code.
func (e *BusinessError) Is(target error) bool {
	t, ok := target.(*BusinessError)
	return ok && t.Code == e.Code
}

func NewBusinessError(code, message string, cause error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

const CodeStoreFailure = "STORE_FAILURE"

var ErrStoreFailure = NewBusinessError(CodeStoreFailure, "store operation failed", nil)

func NewStoreFailure(message string, cause error) *BusinessError {
	return NewBusinessError(CodeStoreFailure, message, cause)
}

// IsValidationError проверяет является ли ошибка ошибкой валидации
func IsValidationError(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

// IsBusinessError проверяет является ли ошибка бизнес-ошибкой
func IsBusinessError(err error) bool {
	var businessErr *BusinessError
	return errors.As(err, &businessErr)
}

func IsStoreFailure(err error) bool {
	return errors.Is(err, ErrStoreFailure)
}

func GetValidationError(err error) *ValidationError {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr
	}
	return nil
}

// GetBusinessError извлекает BusinessError из ошибки
func GetBusinessError(err error) *BusinessError {
	var businessErr *BusinessError
	if errors.As(err, &businessErr) {
		return businessErr
	}
	return nil
}
