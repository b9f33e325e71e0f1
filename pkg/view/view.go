// Package view derives the displayed shelf from the raw book collection:
// status filtering, stable multi-field sorting, filter-badge counts, and the
// save-time status derivation rule.
package view

import (
	"sort"
	"strings"

	"readinglist/pkg/domain"
)

// FilterAll is the sentinel filter value that passes every book through.
const FilterAll = "All"

// SortField selects the column books are ordered by.
type SortField string

const (
	SortByTitle      SortField = "title"
	SortByAuthor     SortField = "author"
	SortByStatus     SortField = "status"
	SortByStartDate  SortField = "start_date"
	SortByFinishDate SortField = "finish_date"
	SortByRating     SortField = "rating"
)

// SortDirection is ascending or descending.
type SortDirection string

const (
	Ascending  SortDirection = "asc"
	Descending SortDirection = "desc"
)

// ParseSortField validates a wire value against the sortable columns.
func ParseSortField(raw string) (SortField, bool) {
	switch SortField(raw) {
	case SortByTitle, SortByAuthor, SortByStatus, SortByStartDate, SortByFinishDate, SortByRating:
		return SortField(raw), true
	default:
		return "", false
	}
}

// ParseSortDirection validates a wire value against asc/desc.
func ParseSortDirection(raw string) (SortDirection, bool) {
	switch SortDirection(raw) {
	case Ascending, Descending:
		return SortDirection(raw), true
	default:
		return "", false
	}
}

// Apply returns the books matching the status filter, ordered by the sort
// field and direction. The input slice is never mutated. The sort is stable:
// books with equal keys keep their relative order from the input.
//
// Unset ratings and dates sort lowest in ascending order. String fields
// compare case-insensitively.
func Apply(books []domain.Book, filter string, field SortField, dir SortDirection) []domain.Book {
	out := make([]domain.Book, 0, len(books))
	for _, b := range books {
		if filter == FilterAll || string(b.Status) == filter {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		less, equal := compare(out[i], out[j], field)
		if equal {
			return false
		}
		if dir == Descending {
			return !less
		}
		return less
	})
	return out
}

// compare orders two books on one field. Rating compares numerically with
// unrated treated as zero; every other field compares as a lowercased string,
// with unset dates normalizing to the empty string so they sort first
// ascending.
func compare(a, b domain.Book, field SortField) (less, equal bool) {
	if field == SortByRating {
		return a.Rating < b.Rating, a.Rating == b.Rating
	}
	av := strings.ToLower(sortKey(a, field))
	bv := strings.ToLower(sortKey(b, field))
	return av < bv, av == bv
}

func sortKey(b domain.Book, field SortField) string {
	switch field {
	case SortByTitle:
		return b.Title
	case SortByAuthor:
		return b.Author
	case SortByStatus:
		return string(b.Status)
	case SortByStartDate:
		return b.StartDate
	case SortByFinishDate:
		return b.FinishDate
	default:
		return b.Title
	}
}

// Counts maps each status label, plus FilterAll, to the number of matching
// books in the unfiltered collection. Used for the filter-button badges.
func Counts(books []domain.Book) map[string]int {
	counts := make(map[string]int, len(domain.AllStatuses)+1)
	counts[FilterAll] = len(books)
	for _, status := range domain.AllStatuses {
		counts[string(status)] = 0
	}
	for _, b := range books {
		counts[string(b.Status)]++
	}
	return counts
}

// DeriveStatus applies the save-time status rule: a finish date forces
// Finished, otherwise a start date forces Currently Reading, otherwise the
// explicit selection stands. The precedence is absolute; an explicit
// "Did Not Finish" is overridden when a finish date is set.
func DeriveStatus(selected domain.BookStatus, startDate, finishDate string) domain.BookStatus {
	if finishDate != "" {
		return domain.StatusFinished
	}
	if startDate != "" {
		return domain.StatusReading
	}
	return selected
}
