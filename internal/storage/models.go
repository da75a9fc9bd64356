package storage

import (
	"errors"
	"time"
)

var (
	// ErrConflict is returned when a short endpoint or category name is taken.
	ErrConflict = errors.New("data conflict")
	// ErrNotFound is returned when no document matches the filter.
	ErrNotFound = errors.New("not found")
)

// URLRecord is a short endpoint pointing at an original URL.
type URLRecord struct {
	ID          string    `json:"_id"`
	UserID      string    `json:"userID"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	Suborg      string    `json:"suborg,omitempty"`
	Short       string    `json:"shortURLEndPoint"`
	Original    string    `json:"originalURL"`
	Hits        int64     `json:"hits"`
	LastHitAt   time.Time `json:"lastHitAt"`
	Blacklisted bool      `json:"blacklisted"`
	CreatedAt   time.Time `json:"createdAt"`
}

// User holds the per-owner URL counter.
type User struct {
	ID        string
	URLCount  int64
	CreatedAt time.Time
}

// Category is a user-owned suborg namespace.
type Category struct {
	Name      string
	OwnerID   string
	URLCount  int64
	CreatedAt time.Time
}

// Stats holds service-wide totals.
type Stats struct {
	URLs  int
	Users int
}

// DriftTarget names the entity whose counter drifted.
type DriftTarget string

const (
	DriftUser     DriftTarget = "user"
	DriftCategory DriftTarget = "category"
)

// DriftEntry records a counter update that failed after its record mutation
// succeeded, leaving the counter off by Delta.
type DriftEntry struct {
	Target   DriftTarget `json:"target"`
	ID       string      `json:"id"`
	Delta    int64       `json:"delta"`
	RecordID string      `json:"record_id"`
	Err      string      `json:"error,omitempty"`
	At       time.Time   `json:"at"`
}
