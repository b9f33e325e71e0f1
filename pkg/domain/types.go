package domain

import "time"

// BookStatus describes reading progress for one shelf entry.
type BookStatus string

const (
	StatusToRead       BookStatus = "To-Read"
	StatusReading      BookStatus = "Currently Reading"
	StatusFinished     BookStatus = "Finished"
	StatusDidNotFinish BookStatus = "Did Not Finish"
)

// AllStatuses lists statuses in the order they appear as filter buttons.
var AllStatuses = []BookStatus{
	StatusToRead,
	StatusReading,
	StatusFinished,
	StatusDidNotFinish,
}

// ParseBookStatus maps a wire value onto the closed status enumeration.
func ParseBookStatus(raw string) (BookStatus, bool) {
	switch BookStatus(raw) {
	case StatusToRead:
		return StatusToRead, true
	case StatusReading:
		return StatusReading, true
	case StatusFinished:
		return StatusFinished, true
	case StatusDidNotFinish:
		return StatusDidNotFinish, true
	default:
		return "", false
	}
}

// DateLayout is the calendar-date wire format for start/finish dates.
const DateLayout = "2006-01-02"

// Book is one reading-list entry. StartDate and FinishDate hold calendar
// dates in DateLayout format; empty string means unset. Rating is 1..5,
// zero means unrated.
type Book struct {
	ID         string     `json:"id"`
	OwnerID    string     `json:"ownerId"`
	Title      string     `json:"title"`
	Author     string     `json:"author"`
	Status     BookStatus `json:"status"`
	Notes      string     `json:"notes"`
	StartDate  string     `json:"startDate,omitempty"`
	FinishDate string     `json:"finishDate,omitempty"`
	Rating     int        `json:"rating,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// BookPatch carries the fields of a partial update. Nil means "leave as is".
type BookPatch struct {
	Title      *string     `json:"title,omitempty"`
	Author     *string     `json:"author,omitempty"`
	Status     *BookStatus `json:"status,omitempty"`
	Notes      *string     `json:"notes,omitempty"`
	StartDate  *string     `json:"startDate,omitempty"`
	FinishDate *string     `json:"finishDate,omitempty"`
	Rating     *int        `json:"rating,omitempty"`
}

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
