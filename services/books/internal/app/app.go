package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"readinglist/pkg/domain"
	"readinglist/pkg/store"
)

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL string
	Store       store.Store
}

// App is the core application service wiring together storage and domain logic.
type App struct {
	store store.Store
}

// New constructs the application with database-backed storage.
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}
	return &App{store: dataStore}, nil
}

// BookInput carries the writable fields of a new shelf entry.
type BookInput struct {
	Title      string `json:"title"`
	Author     string `json:"author"`
	Status     string `json:"status"`
	Notes      string `json:"notes"`
	StartDate  string `json:"startDate"`
	FinishDate string `json:"finishDate"`
	Rating     int    `json:"rating"`
}

// CreateBook validates the input and stores a new entry owned by the user.
func (a *App) CreateBook(owner domain.User, input BookInput) (domain.Book, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return domain.Book{}, ErrTitleRequired
	}
	status := domain.StatusToRead
	if input.Status != "" {
		parsed, ok := domain.ParseBookStatus(input.Status)
		if !ok {
			return domain.Book{}, ErrInvalidStatus
		}
		status = parsed
	}
	if err := validateDate(input.StartDate); err != nil {
		return domain.Book{}, err
	}
	if err := validateDate(input.FinishDate); err != nil {
		return domain.Book{}, err
	}
	if err := validateRating(input.Rating); err != nil {
		return domain.Book{}, err
	}
	now := time.Now().UTC()
	book := domain.Book{
		ID:         uuid.NewString(),
		OwnerID:    owner.ID,
		Title:      title,
		Author:     strings.TrimSpace(input.Author),
		Status:     status,
		Notes:      input.Notes,
		StartDate:  input.StartDate,
		FinishDate: input.FinishDate,
		Rating:     input.Rating,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := a.store.SaveBook(book); err != nil {
		return domain.Book{}, fmt.Errorf("save book: %w", err)
	}
	return book, nil
}

// ListBooks returns the user's shelf, newest first.
func (a *App) ListBooks(owner domain.User) ([]domain.Book, error) {
	return a.store.ListBooksByOwner(owner.ID)
}

// GetBook retrieves one entry, enforcing ownership.
func (a *App) GetBook(owner domain.User, id string) (domain.Book, error) {
	book, ok, err := a.store.GetBook(id)
	if err != nil {
		return domain.Book{}, fmt.Errorf("get book: %w", err)
	}
	if !ok {
		return domain.Book{}, ErrBookNotFound
	}
	if book.OwnerID != owner.ID {
		return domain.Book{}, ErrForbidden
	}
	return book, nil
}

// UpdateBook applies the non-nil patch fields to an existing entry.
// ID, owner and creation time never change.
func (a *App) UpdateBook(owner domain.User, id string, patch domain.BookPatch) (domain.Book, error) {
	book, err := a.GetBook(owner, id)
	if err != nil {
		return domain.Book{}, err
	}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return domain.Book{}, ErrTitleRequired
		}
		book.Title = title
	}
	if patch.Author != nil {
		book.Author = strings.TrimSpace(*patch.Author)
	}
	if patch.Status != nil {
		if _, ok := domain.ParseBookStatus(string(*patch.Status)); !ok {
			return domain.Book{}, ErrInvalidStatus
		}
		book.Status = *patch.Status
	}
	if patch.Notes != nil {
		book.Notes = *patch.Notes
	}
	if patch.StartDate != nil {
		if err := validateDate(*patch.StartDate); err != nil {
			return domain.Book{}, err
		}
		book.StartDate = *patch.StartDate
	}
	if patch.FinishDate != nil {
		if err := validateDate(*patch.FinishDate); err != nil {
			return domain.Book{}, err
		}
		book.FinishDate = *patch.FinishDate
	}
	if patch.Rating != nil {
		if err := validateRating(*patch.Rating); err != nil {
			return domain.Book{}, err
		}
		book.Rating = *patch.Rating
	}
	book.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveBook(book); err != nil {
		return domain.Book{}, fmt.Errorf("save book: %w", err)
	}
	return book, nil
}

// DeleteBook removes an entry, enforcing ownership.
func (a *App) DeleteBook(owner domain.User, id string) error {
	if _, err := a.GetBook(owner, id); err != nil {
		return err
	}
	return a.store.DeleteBook(id)
}

// validateDate accepts empty (unset) or a calendar date in DateLayout.
func validateDate(date string) error {
	if date == "" {
		return nil
	}
	if _, err := time.Parse(domain.DateLayout, date); err != nil {
		return ErrInvalidDate
	}
	return nil
}

// validateRating accepts zero (unrated) or 1..5.
func validateRating(rating int) error {
	if rating == 0 {
		return nil
	}
	if rating < 1 || rating > 5 {
		return ErrInvalidRating
	}
	return nil
}
