package service

//go:generate mockgen -destination=../../mocks/mock_service.go -package=mocks github.com/atinyakov/suborg-shortener/internal/app/service URLServiceIface

import (
	"context"
	"time"

	"github.com/atinyakov/suborg-shortener/internal/models"
	"github.com/atinyakov/suborg-shortener/internal/storage"
)

// CounterStore holds the per-user and per-category URL counters. Every
// method is a single atomic update.
type CounterStore interface {
	AdjustUserURLCount(ctx context.Context, userID string, delta int64) error
	AdjustCategoryURLCount(ctx context.Context, name string, delta int64) error
	ReconcileUserURLCount(ctx context.Context, userID string) (int64, error)
	ReconcileCategoryURLCount(ctx context.Context, name string) (int64, error)
}

// Storage is the record store. Implementations return storage.ErrConflict
// when a short endpoint is taken and storage.ErrNotFound on a miss.
type Storage interface {
	CounterStore

	Write(ctx context.Context, r storage.URLRecord) (*storage.URLRecord, error)
	Read(ctx context.Context) ([]storage.URLRecord, error)
	ExistsShort(ctx context.Context, short string) (bool, error)
	FindRedirect(ctx context.Context, short string) (*storage.URLRecord, error)
	FindByID(ctx context.Context, id string) (*storage.URLRecord, error)
	FindByOwner(ctx context.Context, userID, suborg string) ([]storage.URLRecord, error)
	Delete(ctx context.Context, id, userID, suborg string) (bool, error)
	SetBlacklisted(ctx context.Context, id string, blacklisted bool) (*storage.URLRecord, error)
	UpdateShort(ctx context.Context, id, short string) (*storage.URLRecord, error)
	IncrementHits(ctx context.Context, short string, at time.Time) (*storage.URLRecord, error)

	FindUser(ctx context.Context, id string) (*storage.User, error)
	CreateCategory(ctx context.Context, c storage.Category) (*storage.Category, error)
	FindCategory(ctx context.Context, name string) (*storage.Category, error)
	FindCategoriesByOwner(ctx context.Context, ownerID string) ([]storage.Category, error)

	GetStats(ctx context.Context) (*storage.Stats, error)
	PingContext(ctx context.Context) error
}

// CountedStore changes a record and its user and category counters in one
// atomic step. When the store implements it, URLService uses it instead of
// Write or Delete followed by CounterService.
type CountedStore interface {
	WriteCounted(ctx context.Context, r storage.URLRecord) (*storage.URLRecord, error)
	DeleteCounted(ctx context.Context, id, userID, suborg string) (bool, error)
}

// URLServiceIface is what the route layer needs from URLService.
type URLServiceIface interface {
	Create(ctx context.Context, identity models.Identity, req models.CreateRequest) (*storage.URLRecord, error)
	List(ctx context.Context, userID string, scope models.Scope) ([]storage.URLRecord, error)
	ListAll(ctx context.Context) ([]storage.URLRecord, error)
	Delete(ctx context.Context, userID, recordID string, scope models.Scope) (bool, error)
	Resolve(ctx context.Context, endpoint string) (string, bool, error)
	RecordHit(ctx context.Context, endpoint string) error
	Rename(ctx context.Context, userID, recordID string, scope models.Scope, alias string) (*storage.URLRecord, error)
	BlacklistURL(ctx context.Context, recordID string) (*storage.URLRecord, error)
	WhitelistURL(ctx context.Context, recordID string) (*storage.URLRecord, error)
	CreateCategory(ctx context.Context, identity models.Identity, name string) (*storage.Category, error)
	ListCategories(ctx context.Context, userID string) ([]storage.Category, error)
	GetStats(ctx context.Context) (*storage.Stats, error)
	GetUser(ctx context.Context, userID string) (*storage.User, error)
	PingContext(ctx context.Context) error
}
