// Package client is the typed REST client for the book and prediction APIs.
package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/typenhq/typen/internal/api"
	"github.com/typenhq/typen/internal/types"
)

// BookResponse is the envelope for single-book responses.
type BookResponse struct {
	Status string     `json:"status"`
	Book   types.Book `json:"book"`
}

// BooksResponse is the envelope for list responses.
type BooksResponse struct {
	Status string       `json:"status"`
	Books  []types.Book `json:"books"`
	Count  int          `json:"count"`
}

// StatusResponse is the envelope for responses without a body.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// PredictResponse is the envelope for prediction responses.
type PredictResponse struct {
	Status      string             `json:"status"`
	Predictions []types.Prediction `json:"predictions"`
}

// Client calls the Typen REST API.
type Client struct {
	api *api.Client
}

// New wraps an api.Client.
func New(c *api.Client) *Client {
	return &Client{api: c}
}

// GetBook fetches a book by id.
func (c *Client) GetBook(ctx context.Context, id string) (types.Book, error) {
	var resp BookResponse
	if err := c.api.Get(ctx, "/api/books/"+url.PathEscape(id), &resp); err != nil {
		return types.Book{}, fmt.Errorf("failed to get book %s: %w", id, err)
	}
	return resp.Book, nil
}

// CreateBook creates a book and returns it with its server-assigned fields.
func (c *Client) CreateBook(ctx context.Context, nb types.NewBook) (types.Book, error) {
	var resp BookResponse
	if err := c.api.Post(ctx, "/api/books", nb, &resp); err != nil {
		return types.Book{}, fmt.Errorf("failed to create book: %w", err)
	}
	return resp.Book, nil
}

// UpdateBook applies a partial update.
func (c *Client) UpdateBook(ctx context.Context, id string, u types.BookUpdate) error {
	var resp StatusResponse
	if err := c.api.Put(ctx, "/api/books/"+url.PathEscape(id), u, &resp); err != nil {
		return fmt.Errorf("failed to update book %s: %w", id, err)
	}
	return nil
}

// DeleteBook deletes a book.
func (c *Client) DeleteBook(ctx context.Context, id string) error {
	if err := c.api.Delete(ctx, "/api/books/"+url.PathEscape(id)); err != nil {
		return fmt.Errorf("failed to delete book %s: %w", id, err)
	}
	return nil
}

// ListBooks lists a user's books. Content in the result is truncated.
func (c *Client) ListBooks(ctx context.Context, userID string, f types.BookFilter) ([]types.Book, error) {
	q := FilterQuery(f)
	path := "/api/books/user/" + url.PathEscape(userID)
	if enc := q.Encode(); enc != "" {
		path += "?" + enc
	}
	var resp BooksResponse
	if err := c.api.Get(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	return resp.Books, nil
}

// FilterQuery encodes a filter as query parameters.
func FilterQuery(f types.BookFilter) url.Values {
	q := url.Values{}
	if f.Archived != nil {
		q.Set("archived", strconv.FormatBool(*f.Archived))
	}
	if f.Favorite != nil {
		q.Set("favorite", strconv.FormatBool(*f.Favorite))
	}
	if f.Status != nil {
		q.Set("status", string(*f.Status))
	}
	return q
}

// SetFavorite marks or unmarks a book as favorite.
func (c *Client) SetFavorite(ctx context.Context, id string, favorite bool) error {
	return c.UpdateBook(ctx, id, types.BookUpdate{IsFavorite: types.Bool(favorite)})
}

// SetArchived archives or restores a book.
func (c *Client) SetArchived(ctx context.Context, id string, archived bool) error {
	return c.UpdateBook(ctx, id, types.BookUpdate{IsArchived: types.Bool(archived)})
}

// ExportPDF downloads the paginated book as a PDF.
func (c *Client) ExportPDF(ctx context.Context, id string) ([]byte, error) {
	data, err := c.api.Download(ctx, "/api/books/"+url.PathEscape(id)+"/pdf")
	if err != nil {
		return nil, fmt.Errorf("failed to export book %s: %w", id, err)
	}
	return data, nil
}

// Predict asks for next-word predictions. It satisfies prediction.Fetcher.
func (c *Client) Predict(ctx context.Context, req types.PredictRequest) ([]types.Prediction, error) {
	var resp PredictResponse
	if err := c.api.Post(ctx, "/api/predict", req, &resp); err != nil {
		return nil, fmt.Errorf("failed to get predictions: %w", err)
	}
	if !strings.EqualFold(resp.Status, "success") {
		return nil, fmt.Errorf("failed to get predictions: status %q", resp.Status)
	}
	return resp.Predictions, nil
}
