package app

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"readinglist/pkg/domain"
	"readinglist/pkg/view"
	"readinglist/services/webapp/internal/bookclient"
)

// Collection mirrors each user's shelf as last loaded from the books service.
// A failed reload keeps the previous snapshot; rendering never sees the error.
type Collection struct {
	books *bookclient.Client

	mu        sync.RWMutex
	snapshots map[string][]domain.Book
}

// NewCollection constructs an empty mirror backed by the books client.
func NewCollection(books *bookclient.Client) *Collection {
	return &Collection{
		books:     books,
		snapshots: make(map[string][]domain.Book),
	}
}

// Load fetches the user's shelf and replaces the snapshot wholesale.
// On failure the previous snapshot is returned unchanged and the error is
// only logged.
func (c *Collection) Load(token, userID string) []domain.Book {
	items, err := c.books.ListBooks(token)
	if err != nil {
		slog.Error("shelf load failed", "user_id", userID, "err", err)
		return c.Snapshot(userID)
	}
	c.mu.Lock()
	c.snapshots[userID] = items
	c.mu.Unlock()
	return items
}

// Snapshot returns the last loaded shelf without touching the backend.
func (c *Collection) Snapshot(userID string) []domain.Book {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshots[userID]
}

// SaveRequest carries the editable form fields of one shelf entry.
// An empty ID means a new entry, otherwise a partial update.
type SaveRequest struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Author     string `json:"author"`
	Status     string `json:"status"`
	Notes      string `json:"notes"`
	StartDate  string `json:"startDate"`
	FinishDate string `json:"finishDate"`
	Rating     int    `json:"rating"`
}

// Save validates the form, derives the effective status from the dates, and
// writes through to the books service, then reloads the shelf.
func (c *Collection) Save(token, userID string, req SaveRequest) ([]domain.Book, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, ErrTitleRequired
	}
	selected := domain.StatusToRead
	if req.Status != "" {
		parsed, ok := domain.ParseBookStatus(req.Status)
		if !ok {
			return nil, ErrInvalidStatus
		}
		selected = parsed
	}
	status := view.DeriveStatus(selected, req.StartDate, req.FinishDate)

	if req.ID == "" {
		_, err := c.books.CreateBook(token, bookclient.BookInput{
			Title:      req.Title,
			Author:     req.Author,
			Status:     string(status),
			Notes:      req.Notes,
			StartDate:  req.StartDate,
			FinishDate: req.FinishDate,
			Rating:     req.Rating,
		})
		if err != nil {
			return nil, fmt.Errorf("create book: %w", err)
		}
	} else {
		patch := domain.BookPatch{
			Title:      &req.Title,
			Author:     &req.Author,
			Status:     &status,
			Notes:      &req.Notes,
			StartDate:  &req.StartDate,
			FinishDate: &req.FinishDate,
			Rating:     &req.Rating,
		}
		if _, err := c.books.UpdateBook(token, req.ID, patch); err != nil {
			return nil, fmt.Errorf("update book: %w", err)
		}
	}
	return c.Load(token, userID), nil
}

// Remove deletes an entry and reloads the shelf. Confirmation is enforced
// by the caller before this point.
func (c *Collection) Remove(token, userID, id string) ([]domain.Book, error) {
	if err := c.books.DeleteBook(token, id); err != nil {
		return nil, fmt.Errorf("delete book: %w", err)
	}
	return c.Load(token, userID), nil
}
