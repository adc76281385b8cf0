// Package types provides shared types used across multiple packages.
// This package has no dependencies on other typen packages to avoid import cycles.
package types

import "time"

// BookStatus is the lifecycle state of a book.
type BookStatus string

const (
	StatusDraft     BookStatus = "draft"
	StatusPublished BookStatus = "published"
)

// Book is a persisted writing document.
// Content holds page fragments joined by the page-break marker.
type Book struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Genre       string     `json:"genre"`
	CoverImage  string     `json:"coverImage"`
	Content     string     `json:"content"`
	WordCount   int        `json:"wordCount"`
	Status      BookStatus `json:"status"`
	IsFavorite  bool       `json:"isFavorite"`
	IsArchived  bool       `json:"isArchived"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// NewBook is the payload for creating a book.
type NewBook struct {
	UserID      string `json:"userId"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Genre       string `json:"genre,omitempty"`
	CoverImage  string `json:"coverImage,omitempty"`
}

// BookUpdate is a partial update. Nil fields are left untouched.
type BookUpdate struct {
	Title       *string     `json:"title,omitempty"`
	Description *string     `json:"description,omitempty"`
	Genre       *string     `json:"genre,omitempty"`
	CoverImage  *string     `json:"coverImage,omitempty"`
	Content     *string     `json:"content,omitempty"`
	WordCount   *int        `json:"wordCount,omitempty"`
	Status      *BookStatus `json:"status,omitempty"`
	IsFavorite  *bool       `json:"isFavorite,omitempty"`
	IsArchived  *bool       `json:"isArchived,omitempty"`
}

// Empty reports whether the update carries no fields.
func (u BookUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.Genre == nil &&
		u.CoverImage == nil && u.Content == nil && u.WordCount == nil &&
		u.Status == nil && u.IsFavorite == nil && u.IsArchived == nil
}

// BookFilter narrows a book listing. Nil fields match everything.
type BookFilter struct {
	Archived *bool
	Favorite *bool
	Status   *BookStatus
}

// PredictionType distinguishes likely continuations from creative ones.
type PredictionType string

const (
	PredictionProbable PredictionType = "probable"
	PredictionCreative PredictionType = "creative"
)

// Prediction is one next-word suggestion.
type Prediction struct {
	ID   int            `json:"id"`
	Rank string         `json:"rank"`
	Word string         `json:"word"`
	Type PredictionType `json:"type"`
}

// PredictRequest asks for next-word suggestions for the text so far.
type PredictRequest struct {
	Text  string `json:"text"`
	Genre string `json:"genre,omitempty"`
}

// String returns a pointer to s. Convenience for building updates.
func String(s string) *string { return &s }

// Int returns a pointer to n.
func Int(n int) *int { return &n }

// Bool returns a pointer to b.
func Bool(b bool) *bool { return &b }
