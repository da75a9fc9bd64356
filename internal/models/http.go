// Package models defines the request and response data structures used
// for communication between the client and the URL shortener service.
package models

import "time"

// CreateRequest represents a request to shorten a URL.
type CreateRequest struct {
	// OriginalURL is the destination, with or without a scheme.
	OriginalURL string `json:"originalURL"`

	// WantCustomURL selects CustomURL instead of a generated alias.
	WantCustomURL bool `json:"wantCustomURL"`

	// CustomURL is the requested alias when WantCustomURL is set.
	CustomURL string `json:"customURL,omitempty"`

	// Suborg places the alias in a category namespace. Empty means root.
	Suborg string `json:"suborg,omitempty"`
}

// Scope returns the namespace the request targets.
func (r CreateRequest) Scope() Scope {
	return CategoryScope(r.Suborg)
}

// DeleteRequest identifies a record to delete.
type DeleteRequest struct {
	ID     string `json:"_id"`
	Suborg string `json:"suborg,omitempty"`
}

// RenameRequest changes the alias of an existing record.
type RenameRequest struct {
	ID       string `json:"_id"`
	Suborg   string `json:"suborg,omitempty"`
	Endpoint string `json:"endpoint"`
}

// CategoryRequest creates a category.
type CategoryRequest struct {
	Name string `json:"name"`
}

// URLResponse is the public view of a URL record.
type URLResponse struct {
	ID          string     `json:"_id"`
	ShortURL    string     `json:"shortURL"`
	Endpoint    string     `json:"shortURLEndPoint"`
	OriginalURL string     `json:"originalURL"`
	Suborg      string     `json:"suborg,omitempty"`
	Hits        int64      `json:"hits"`
	LastHitAt   *time.Time `json:"lastHitAt,omitempty"`
	Blacklisted bool       `json:"blacklisted"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// CategoryResponse is the public view of a category.
type CategoryResponse struct {
	Name     string `json:"name"`
	URLCount int64  `json:"urlCount"`
}

// UserResponse is the caller's own profile.
type UserResponse struct {
	ID       string `json:"_id"`
	URLCount int64  `json:"urlCount"`
}

// StatsResponse holds service-wide totals.
type StatsResponse struct {
	URLs  int `json:"urls"`
	Users int `json:"users"`
}

// ErrorResponse carries a rejection kind and message.
type ErrorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}
