package app

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"readinglist/pkg/domain"
	"readinglist/services/webapp/internal/bookclient"
)

type fakeBooks struct {
	srv      *httptest.Server
	items    []domain.Book
	failList atomic.Bool
	created  []bookclient.BookInput
	patched  map[string]domain.BookPatch
	deleted  []string
}

func newFakeBooks(t *testing.T) *fakeBooks {
	t.Helper()
	f := &fakeBooks{patched: make(map[string]domain.BookPatch)}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/books" && r.Method == http.MethodGet:
			if f.failList.Load() {
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "internal error"})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"items": f.items, "count": len(f.items)})
		case r.URL.Path == "/books" && r.Method == http.MethodPost:
			var input bookclient.BookInput
			_ = json.NewDecoder(r.Body).Decode(&input)
			f.created = append(f.created, input)
			book := domain.Book{ID: "new-id", Title: input.Title, Status: domain.BookStatus(input.Status)}
			f.items = append(f.items, book)
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(book)
		case r.Method == http.MethodPatch:
			id := r.URL.Path[len("/books/"):]
			var patch domain.BookPatch
			_ = json.NewDecoder(r.Body).Decode(&patch)
			f.patched[id] = patch
			_ = json.NewEncoder(w).Encode(domain.Book{ID: id})
		case r.Method == http.MethodDelete:
			id := r.URL.Path[len("/books/"):]
			f.deleted = append(f.deleted, id)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "deleted"})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeBooks) client() *bookclient.Client {
	return bookclient.NewClient(f.srv.URL)
}

func TestLoadKeepsSnapshotOnFailure(t *testing.T) {
	fake := newFakeBooks(t)
	fake.items = []domain.Book{{ID: "b1", Title: "Dune"}}
	c := NewCollection(fake.client())

	books := c.Load("tok", "user-1")
	if len(books) != 1 || books[0].ID != "b1" {
		t.Fatalf("initial load failed: %+v", books)
	}

	fake.failList.Store(true)
	books = c.Load("tok", "user-1")
	if len(books) != 1 || books[0].ID != "b1" {
		t.Fatalf("snapshot should survive a failed reload, got %+v", books)
	}
}

func TestSaveDerivesStatusFromDates(t *testing.T) {
	fake := newFakeBooks(t)
	c := NewCollection(fake.client())

	_, err := c.Save("tok", "user-1", SaveRequest{
		Title:      "Dune",
		Status:     string(domain.StatusDidNotFinish),
		FinishDate: "2024-06-01",
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(fake.created) != 1 {
		t.Fatalf("expected one create, got %d", len(fake.created))
	}
	if fake.created[0].Status != string(domain.StatusFinished) {
		t.Fatalf("finish date must force Finished, got %q", fake.created[0].Status)
	}

	_, err = c.Save("tok", "user-1", SaveRequest{
		Title:     "Dune",
		StartDate: "2024-01-01",
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if fake.created[1].Status != string(domain.StatusReading) {
		t.Fatalf("start date must force Currently Reading, got %q", fake.created[1].Status)
	}
}

func TestSaveValidatesBeforeRemoteCall(t *testing.T) {
	fake := newFakeBooks(t)
	c := NewCollection(fake.client())

	if _, err := c.Save("tok", "user-1", SaveRequest{Title: "  "}); !errors.Is(err, ErrTitleRequired) {
		t.Fatalf("expected ErrTitleRequired, got %v", err)
	}
	if _, err := c.Save("tok", "user-1", SaveRequest{Title: "x", Status: "bogus"}); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	if len(fake.created) != 0 {
		t.Fatalf("validation failures must not reach the books service")
	}
}

func TestSaveWithIDSendsPatch(t *testing.T) {
	fake := newFakeBooks(t)
	c := NewCollection(fake.client())

	_, err := c.Save("tok", "user-1", SaveRequest{
		ID:     "b1",
		Title:  "Dune",
		Rating: 4,
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	patch, ok := fake.patched["b1"]
	if !ok {
		t.Fatalf("expected a patch for b1")
	}
	if patch.Title == nil || *patch.Title != "Dune" || patch.Rating == nil || *patch.Rating != 4 {
		t.Fatalf("patch fields missing: %+v", patch)
	}
}

func TestRemoveDeletesAndReloads(t *testing.T) {
	fake := newFakeBooks(t)
	fake.items = []domain.Book{{ID: "b1", Title: "Dune"}}
	c := NewCollection(fake.client())

	if _, err := c.Remove("tok", "user-1", "b1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(fake.deleted) != 1 || fake.deleted[0] != "b1" {
		t.Fatalf("expected delete of b1, got %v", fake.deleted)
	}
}
