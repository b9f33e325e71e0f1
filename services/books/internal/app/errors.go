package app

import "errors"

var (
	ErrTitleRequired = errors.New("title is required")
	ErrBookNotFound  = errors.New("book not found")
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidStatus = errors.New("invalid status")
	ErrInvalidDate   = errors.New("invalid date, expected YYYY-MM-DD")
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
)
