package errors

import "errors"

var (
	ErrNotFound               = errors.New("not found")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrForbidden              = errors.New("forbidden")
	ErrInvalid                = errors.New("invalid")
	ErrInvalidInput           = errors.New("invalid input")
	ErrUnsupportedFormat      = errors.New("unsupported format")
	ErrStorageUnavailable     = errors.New("storage unavailable")
	ErrIntegrationUnavailable = errors.New("integration unavailable")
	ErrTooLarge               = errors.New("file too large")
)

func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

func IsUnsupportedFormat(err error) bool {
	return errors.Is(err, ErrUnsupportedFormat)
}
