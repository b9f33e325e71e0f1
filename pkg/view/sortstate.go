package view

// SortState holds the current column-sort selection for one user's shelf.
type SortState struct {
	Field     SortField     `json:"field"`
	Direction SortDirection `json:"direction"`
}

// DefaultSortState matches the shelf's initial presentation.
func DefaultSortState() SortState {
	return SortState{Field: SortByTitle, Direction: Ascending}
}

// Toggle updates the state for a column-header click: re-selecting the
// current field flips the direction, switching to another field resets the
// direction to ascending.
func (s *SortState) Toggle(field SortField) {
	if s.Field == field {
		if s.Direction == Ascending {
			s.Direction = Descending
		} else {
			s.Direction = Ascending
		}
		return
	}
	s.Field = field
	s.Direction = Ascending
}
