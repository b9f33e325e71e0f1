package app

import (
	"time"

	"readinglist/pkg/domain"
	"readinglist/pkg/view"
	"readinglist/services/webapp/internal/bookclient"
)

// Config wires the app's dependencies.
type Config struct {
	Books         *bookclient.Client
	RedisAddr     string
	RedisPassword string
	ConfirmTTL    time.Duration
}

// App bundles the shelf mirror, per-user view state, delete confirmations,
// and presentation preferences behind the HTTP handlers.
type App struct {
	Collection *Collection
	Views      *ViewStates
	Confirm    *RedisConfirmStore
	Prefs      *RedisPreferenceStore
}

// New constructs the app with Redis-backed confirmations and preferences.
func New(cfg Config) *App {
	return &App{
		Collection: NewCollection(cfg.Books),
		Views:      NewViewStates(),
		Confirm:    NewRedisConfirmStore(cfg.RedisAddr, cfg.RedisPassword, cfg.ConfirmTTL),
		Prefs:      NewRedisPreferenceStore(cfg.RedisAddr, cfg.RedisPassword),
	}
}

// ShelfView is the fully derived shelf presentation for one user.
type ShelfView struct {
	Items    []domain.Book  `json:"items"`
	Counts   map[string]int `json:"counts"`
	Filter   string         `json:"filter"`
	Sort     view.SortState `json:"sort"`
	ViewMode string         `json:"viewMode"`
	Total    int            `json:"total"`
}

// Shelf reloads the user's collection and derives the displayed view from
// the current filter and sort selection. Counts always cover the unfiltered
// collection.
func (a *App) Shelf(token, userID string) ShelfView {
	books := a.Collection.Load(token, userID)
	return a.render(userID, books)
}

// ShelfFromSnapshot derives the view without hitting the books service.
func (a *App) ShelfFromSnapshot(userID string) ShelfView {
	return a.render(userID, a.Collection.Snapshot(userID))
}

func (a *App) render(userID string, books []domain.Book) ShelfView {
	state := a.Views.Get(userID)
	items := view.Apply(books, state.Filter, state.Sort.Field, state.Sort.Direction)
	return ShelfView{
		Items:    items,
		Counts:   view.Counts(books),
		Filter:   state.Filter,
		Sort:     state.Sort,
		ViewMode: a.Prefs.Get(userID).ViewMode,
		Total:    len(books),
	}
}
