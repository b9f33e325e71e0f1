package bookclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"readinglist/pkg/domain"
)

// Client calls the books service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// APIError represents a books service error response.
type APIError struct {
	Status  int
	Message string
	Code    string
}

func (e *APIError) Error() string {
	return e.Message
}

// NewClient constructs a books service client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
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

func (c *Client) ListBooks(token string) ([]domain.Book, error) {
	var resp listBooksResponse
	if err := c.doJSON(http.MethodGet, "/books", token, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (c *Client) CreateBook(token string, input BookInput) (domain.Book, error) {
	var book domain.Book
	if err := c.doJSON(http.MethodPost, "/books", token, input, &book); err != nil {
		return domain.Book{}, err
	}
	return book, nil
}

func (c *Client) UpdateBook(token, id string, patch domain.BookPatch) (domain.Book, error) {
	var book domain.Book
	path := fmt.Sprintf("/books/%s", id)
	if err := c.doJSON(http.MethodPatch, path, token, patch, &book); err != nil {
		return domain.Book{}, err
	}
	return book, nil
}

func (c *Client) DeleteBook(token, id string) error {
	path := fmt.Sprintf("/books/%s", id)
	return c.doJSON(http.MethodDelete, path, token, nil, nil)
}

func (c *Client) doJSON(method, path, token string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		msg := errResp.Error
		if msg == "" {
			msg = resp.Status
		}
		return &APIError{Status: resp.StatusCode, Message: msg, Code: strings.TrimSpace(errResp.Code)}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type listBooksResponse struct {
	Items []domain.Book `json:"items"`
	Count int           `json:"count"`
}
