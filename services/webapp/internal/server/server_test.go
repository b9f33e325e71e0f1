package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"readinglist/pkg/domain"
	"readinglist/services/webapp/internal/app"
	"readinglist/services/webapp/internal/authclient"
	"readinglist/services/webapp/internal/bookclient"
)

const testToken = "token-user-1"

// fakeBackend stands in for the auth and books services.
type fakeBackend struct {
	mu     sync.Mutex
	nextID int
	order  []string
	books  map[string]domain.Book
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{books: make(map[string]domain.Book)}
}

func (f *fakeBackend) authHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/me":
			if r.Header.Get("Authorization") != "Bearer "+testToken {
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
				return
			}
			_ = json.NewEncoder(w).Encode(domain.User{ID: "user-1", Email: "reader@example.com"})
		case "/auth/login":
			var req struct {
				Email    string `json:"email"`
				Password string `json:"password"`
			}
			_ = json.NewDecoder(r.Body).Decode(&req)
			if req.Password != "password123" {
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "Incorrect email address or password"})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"token": testToken,
				"user":  domain.User{ID: "user-1", Email: req.Email},
			})
		case "/auth/signup":
			var req struct {
				Email string `json:"email"`
			}
			_ = json.NewDecoder(r.Body).Decode(&req)
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"token": testToken,
				"user":  domain.User{ID: "user-1", Email: req.Email},
			})
		case "/auth/logout":
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	})
}

func (f *fakeBackend) booksHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		switch {
		case r.URL.Path == "/books" && r.Method == http.MethodGet:
			items := make([]domain.Book, 0, len(f.order))
			for i := len(f.order) - 1; i >= 0; i-- {
				items = append(items, f.books[f.order[i]])
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"items": items, "count": len(items)})
		case r.URL.Path == "/books" && r.Method == http.MethodPost:
			var input bookclient.BookInput
			_ = json.NewDecoder(r.Body).Decode(&input)
			f.nextID++
			book := domain.Book{
				ID:         fmt.Sprintf("b%d", f.nextID),
				OwnerID:    "user-1",
				Title:      input.Title,
				Author:     input.Author,
				Status:     domain.BookStatus(input.Status),
				Notes:      input.Notes,
				StartDate:  input.StartDate,
				FinishDate: input.FinishDate,
				Rating:     input.Rating,
			}
			f.books[book.ID] = book
			f.order = append(f.order, book.ID)
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(book)
		case strings.HasPrefix(r.URL.Path, "/books/") && r.Method == http.MethodPatch:
			id := strings.TrimPrefix(r.URL.Path, "/books/")
			book, ok := f.books[id]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "book not found"})
				return
			}
			var patch domain.BookPatch
			_ = json.NewDecoder(r.Body).Decode(&patch)
			if patch.Title != nil {
				book.Title = *patch.Title
			}
			if patch.Status != nil {
				book.Status = *patch.Status
			}
			if patch.StartDate != nil {
				book.StartDate = *patch.StartDate
			}
			if patch.FinishDate != nil {
				book.FinishDate = *patch.FinishDate
			}
			if patch.Rating != nil {
				book.Rating = *patch.Rating
			}
			f.books[id] = book
			_ = json.NewEncoder(w).Encode(book)
		case strings.HasPrefix(r.URL.Path, "/books/") && r.Method == http.MethodDelete:
			id := strings.TrimPrefix(r.URL.Path, "/books/")
			delete(f.books, id)
			for i, existing := range f.order {
				if existing == id {
					f.order = append(f.order[:i], f.order[i+1:]...)
					break
				}
			}
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "deleted"})
		default:
			http.NotFound(w, r)
		}
	})
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	backend := newFakeBackend()
	authSrv := httptest.NewServer(backend.authHandler())
	t.Cleanup(authSrv.Close)
	booksSrv := httptest.NewServer(backend.booksHandler())
	t.Cleanup(booksSrv.Close)
	redisSrv := miniredis.RunT(t)

	webApp := app.New(app.Config{
		Books:     bookclient.NewClient(booksSrv.URL),
		RedisAddr: redisSrv.Addr(),
	})
	srv, err := New(Config{
		App:       webApp,
		Auth:      authclient.NewClient(authSrv.URL),
		RedisAddr: redisSrv.Addr(),
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	httpSrv := httptest.NewServer(srv.Router())
	t.Cleanup(httpSrv.Close)
	return httpSrv
}

func doJSON(t *testing.T, method, url string, payload any) *http.Response {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+testToken)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

func decodeShelf(t *testing.T, resp *http.Response) app.ShelfView {
	t.Helper()
	defer resp.Body.Close()
	var shelf app.ShelfView
	if err := json.NewDecoder(resp.Body).Decode(&shelf); err != nil {
		t.Fatalf("decode shelf: %v", err)
	}
	return shelf
}

func addBook(t *testing.T, srv *httptest.Server, payload map[string]any) app.ShelfView {
	t.Helper()
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/books", payload)
	if resp.StatusCode != http.StatusCreated {
		resp.Body.Close()
		t.Fatalf("add book expected 201, got %d", resp.StatusCode)
	}
	return decodeShelf(t, resp)
}

func TestShelfFilterSortAndCounts(t *testing.T) {
	srv := newTestServer(t)

	addBook(t, srv, map[string]any{"title": "Zeus"})
	addBook(t, srv, map[string]any{"title": "apple"})
	shelf := addBook(t, srv, map[string]any{"title": "Middle", "finishDate": "2024-05-01"})

	if shelf.Total != 3 {
		t.Fatalf("expected 3 books, got %d", shelf.Total)
	}
	if shelf.Counts["All"] != 3 || shelf.Counts["Finished"] != 1 || shelf.Counts["To-Read"] != 2 {
		t.Fatalf("unexpected counts: %v", shelf.Counts)
	}

	// Default sort is title ascending, case-insensitive.
	shelfResp := doJSON(t, http.MethodGet, srv.URL+"/api/shelf", nil)
	shelf = decodeShelf(t, shelfResp)
	if shelf.Items[0].Title != "apple" || shelf.Items[2].Title != "Zeus" {
		t.Fatalf("unexpected order: %v", titles(shelf))
	}

	// Filtering narrows items but not counts.
	shelfResp = doJSON(t, http.MethodGet, srv.URL+"/api/shelf?status=Finished", nil)
	shelf = decodeShelf(t, shelfResp)
	if len(shelf.Items) != 1 || shelf.Items[0].Title != "Middle" {
		t.Fatalf("filter not applied: %v", titles(shelf))
	}
	if shelf.Counts["All"] != 3 {
		t.Fatalf("counts must cover the unfiltered collection: %v", shelf.Counts)
	}

	// The filter persists across requests for this user.
	shelfResp = doJSON(t, http.MethodGet, srv.URL+"/api/shelf", nil)
	shelf = decodeShelf(t, shelfResp)
	if shelf.Filter != "Finished" || len(shelf.Items) != 1 {
		t.Fatalf("filter should persist: %+v", shelf.Filter)
	}
}

func TestShelfSortToggle(t *testing.T) {
	srv := newTestServer(t)
	addBook(t, srv, map[string]any{"title": "Alpha"})
	addBook(t, srv, map[string]any{"title": "Beta"})

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/shelf/sort", map[string]string{"field": "title"})
	shelf := decodeShelf(t, resp)
	if shelf.Sort.Direction != "desc" {
		t.Fatalf("re-selecting the default field should flip to desc, got %+v", shelf.Sort)
	}
	if shelf.Items[0].Title != "Beta" {
		t.Fatalf("descending order expected: %v", titles(shelf))
	}

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/shelf/sort", map[string]string{"field": "rating"})
	shelf = decodeShelf(t, resp)
	if shelf.Sort.Field != "rating" || shelf.Sort.Direction != "asc" {
		t.Fatalf("new field should reset to asc, got %+v", shelf.Sort)
	}

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/shelf/sort", map[string]string{"field": "bogus"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid field expected 400, got %d", resp.StatusCode)
	}
}

func TestSaveDerivesStatus(t *testing.T) {
	srv := newTestServer(t)
	shelf := addBook(t, srv, map[string]any{
		"title":      "Dune",
		"status":     "Did Not Finish",
		"finishDate": "2024-06-01",
	})
	if shelf.Items[0].Status != domain.StatusFinished {
		t.Fatalf("finish date must force Finished, got %q", shelf.Items[0].Status)
	}

	resp := doJSON(t, http.MethodPatch, srv.URL+"/api/books/"+shelf.Items[0].ID, map[string]any{
		"title":     "Dune",
		"status":    "To-Read",
		"startDate": "2024-01-01",
	})
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		t.Fatalf("patch expected 200, got %d", resp.StatusCode)
	}
	shelf = decodeShelf(t, resp)
	if shelf.Items[0].Status != domain.StatusReading {
		t.Fatalf("start date must force Currently Reading, got %q", shelf.Items[0].Status)
	}
}

func TestSaveRequiresTitle(t *testing.T) {
	srv := newTestServer(t)
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/books", map[string]any{"title": "  "})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	var body struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Code != "SHELF_TITLE_REQUIRED" {
		t.Fatalf("unexpected code %q", body.Code)
	}
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	srv := newTestServer(t)
	shelf := addBook(t, srv, map[string]any{"title": "Dune"})
	id := shelf.Items[0].ID

	// Unconfirmed delete is refused.
	resp := doJSON(t, http.MethodDelete, srv.URL+"/api/books/"+id, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("unconfirmed delete expected 409, got %d", resp.StatusCode)
	}

	// Confirm then delete.
	confirmResp := doJSON(t, http.MethodPost, srv.URL+"/api/books/"+id+"/confirm-delete", nil)
	var confirm struct {
		ConfirmToken string `json:"confirmToken"`
	}
	if err := json.NewDecoder(confirmResp.Body).Decode(&confirm); err != nil {
		t.Fatalf("decode confirm: %v", err)
	}
	confirmResp.Body.Close()
	if confirm.ConfirmToken == "" {
		t.Fatalf("expected confirmation token")
	}

	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/books/"+id, map[string]string{"confirmToken": confirm.ConfirmToken})
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		t.Fatalf("confirmed delete expected 200, got %d", resp.StatusCode)
	}
	shelf = decodeShelf(t, resp)
	if shelf.Total != 0 {
		t.Fatalf("book should be gone, got %d", shelf.Total)
	}
}

func TestPreferencesRoundTrip(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodPut, srv.URL+"/api/preferences", map[string]string{"viewMode": "list", "theme": "dark"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("put expected 200, got %d", resp.StatusCode)
	}
	var prefs app.Preferences
	if err := json.NewDecoder(resp.Body).Decode(&prefs); err != nil {
		t.Fatalf("decode prefs: %v", err)
	}
	if prefs.ViewMode != "list" || prefs.Theme != "dark" {
		t.Fatalf("prefs not stored: %+v", prefs)
	}

	badResp := doJSON(t, http.MethodPut, srv.URL+"/api/preferences", map[string]string{"viewMode": "spiral"})
	badResp.Body.Close()
	if badResp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid view mode expected 400, got %d", badResp.StatusCode)
	}

	// View mode is reflected on the shelf.
	shelfResp := doJSON(t, http.MethodGet, srv.URL+"/api/shelf", nil)
	shelf := decodeShelf(t, shelfResp)
	if shelf.ViewMode != "list" {
		t.Fatalf("shelf should carry stored view mode, got %q", shelf.ViewMode)
	}
}

func TestShelfRequiresAuth(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/shelf")
	if err != nil {
		t.Fatalf("get without token: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func titles(shelf app.ShelfView) []string {
	out := make([]string, 0, len(shelf.Items))
	for _, b := range shelf.Items {
		out = append(out, b.Title)
	}
	return out
}
