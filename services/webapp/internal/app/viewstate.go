package app

import (
	"sync"

	"readinglist/pkg/view"
)

// ViewState is one user's current shelf presentation selection.
type ViewState struct {
	Filter string         `json:"filter"`
	Sort   view.SortState `json:"sort"`
}

func defaultViewState() ViewState {
	return ViewState{Filter: view.FilterAll, Sort: view.DefaultSortState()}
}

// ViewStates holds per-user filter and sort selections. State lives for the
// life of the process; a fresh user starts at All / title ascending.
type ViewStates struct {
	mu     sync.Mutex
	states map[string]ViewState
}

func NewViewStates() *ViewStates {
	return &ViewStates{states: make(map[string]ViewState)}
}

// Get returns the user's current selection, defaulting for new users.
func (v *ViewStates) Get(userID string) ViewState {
	v.mu.Lock()
	defer v.mu.Unlock()
	state, ok := v.states[userID]
	if !ok {
		return defaultViewState()
	}
	return state
}

// SetFilter replaces the status filter, leaving the sort untouched.
func (v *ViewStates) SetFilter(userID, filter string) ViewState {
	v.mu.Lock()
	defer v.mu.Unlock()
	state, ok := v.states[userID]
	if !ok {
		state = defaultViewState()
	}
	state.Filter = filter
	v.states[userID] = state
	return state
}

// SetSort replaces the sort selection explicitly.
func (v *ViewStates) SetSort(userID string, field view.SortField, dir view.SortDirection) ViewState {
	v.mu.Lock()
	defer v.mu.Unlock()
	state, ok := v.states[userID]
	if !ok {
		state = defaultViewState()
	}
	state.Sort = view.SortState{Field: field, Direction: dir}
	v.states[userID] = state
	return state
}

// ToggleSort applies column-header click semantics to the user's sort.
func (v *ViewStates) ToggleSort(userID string, field view.SortField) ViewState {
	v.mu.Lock()
	defer v.mu.Unlock()
	state, ok := v.states[userID]
	if !ok {
		state = defaultViewState()
	}
	state.Sort.Toggle(field)
	v.states[userID] = state
	return state
}
