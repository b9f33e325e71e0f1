package app

import "errors"

var (
	ErrTitleRequired        = errors.New("title is required")
	ErrInvalidStatus        = errors.New("invalid status")
	ErrConfirmationRequired = errors.New("delete confirmation required")
)
