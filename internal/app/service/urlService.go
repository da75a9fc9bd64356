package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atinyakov/suborg-shortener/internal/internalerrors"
	"github.com/atinyakov/suborg-shortener/internal/models"
	"github.com/atinyakov/suborg-shortener/internal/storage"
)

// URLService allocates, lists, deletes and resolves short URLs. It holds no
// per-request state; all shared state lives in the store.
type URLService struct {
	repository Storage
	counted    CountedStore
	generator  *EndpointGenerator
	validator  *AliasValidator
	normalizer *DestinationNormalizer
	counters   *CounterService
	logger     *zap.Logger
	now        func() time.Time
}

func NewURL(
	repo Storage,
	generator *EndpointGenerator,
	validator *AliasValidator,
	normalizer *DestinationNormalizer,
	counters *CounterService,
	logger *zap.Logger,
) *URLService {
	counted, _ := repo.(CountedStore)

	return &URLService{
		repository: repo,
		counted:    counted,
		generator:  generator,
		validator:  validator,
		normalizer: normalizer,
		counters:   counters,
		logger:     logger,
		now:        time.Now,
	}
}

// storageErr classifies a store failure. Errors that already carry a kind
// pass through unchanged.
func storageErr(err error) error {
	var classified *internalerrors.Error
	if errors.As(err, &classified) {
		return err
	}
	return internalerrors.Wrap(internalerrors.KindStorage, internalerrors.ErrStorage.Reason, err)
}

func (s *URLService) PingContext(ctx context.Context) error {
	return s.repository.PingContext(ctx)
}

// Create allocates a short endpoint for req on behalf of identity.
func (s *URLService) Create(ctx context.Context, identity models.Identity, req models.CreateRequest) (*storage.URLRecord, error) {
	if identity.Blacklisted {
		return nil, internalerrors.ErrForbidden
	}

	original, err := s.normalizer.Normalize(ctx, req.OriginalURL)
	if err != nil {
		return nil, err
	}

	scope := req.Scope()
	if !scope.IsRoot() {
		if err := s.checkCategoryOwner(ctx, identity.UserID, scope.Category()); err != nil {
			return nil, err
		}
	}

	record := storage.URLRecord{
		UserID:   identity.UserID,
		Email:    identity.Email,
		Name:     identity.Name,
		Suborg:   scope.Category(),
		Original: original,
	}

	var created *storage.URLRecord
	if req.WantCustomURL {
		created, err = s.createCustom(ctx, record, scope, req.CustomURL)
	} else {
		created, err = s.createGenerated(ctx, record, scope)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("short URL created",
		zap.String("endpoint", created.Short),
		zap.String("user_id", created.UserID),
		zap.String("scope", scope.String()),
	)

	if s.counted == nil {
		s.counters.IncrementUser(ctx, created.UserID, created.ID)
		if !scope.IsRoot() {
			s.counters.IncrementCategory(ctx, scope.Category(), created.ID)
		}
	}

	return created, nil
}

// write stores record, together with its counters when the store supports it.
func (s *URLService) write(ctx context.Context, record storage.URLRecord) (*storage.URLRecord, error) {
	if s.counted == nil {
		return s.repository.Write(ctx, record)
	}

	created, err := s.counted.WriteCounted(ctx, record)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, internalerrors.New(internalerrors.KindNotFound, "suborg "+record.Suborg+" does not exist")
	}
	return created, err
}

func (s *URLService) checkCategoryOwner(ctx context.Context, userID, name string) error {
	c, err := s.repository.FindCategory(ctx, name)
	if errors.Is(err, storage.ErrNotFound) {
		return internalerrors.New(internalerrors.KindNotFound, "suborg "+name+" does not exist")
	}
	if err != nil {
		return storageErr(err)
	}
	if c.OwnerID != userID {
		return internalerrors.New(internalerrors.KindForbidden, "suborg "+name+" belongs to another user")
	}
	return nil
}

func (s *URLService) createCustom(ctx context.Context, record storage.URLRecord, scope models.Scope, alias string) (*storage.URLRecord, error) {
	if _, err := s.validator.Validate(ctx, alias, scope); err != nil {
		return nil, err
	}

	record.ID = uuid.NewString()
	record.Short = scope.Endpoint(alias)

	created, err := s.write(ctx, record)
	if errors.Is(err, storage.ErrConflict) {
		// lost a race with a concurrent create of the same alias
		return nil, internalerrors.ErrAlreadyExists
	}
	if err != nil {
		return nil, storageErr(err)
	}
	return created, nil
}

func (s *URLService) createGenerated(ctx context.Context, record storage.URLRecord, scope models.Scope) (*storage.URLRecord, error) {
	for i := 0; i < s.generator.Attempts(); i++ {
		alias, err := s.generator.Generate(ctx, scope)
		if err != nil {
			return nil, err
		}

		record.ID = uuid.NewString()
		record.Short = scope.Endpoint(alias)

		created, err := s.write(ctx, record)
		if errors.Is(err, storage.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, storageErr(err)
		}
		return created, nil
	}

	return nil, internalerrors.ErrAllocationExhausted
}

// List returns the user's records in scope, blacklisted ones included.
func (s *URLService) List(ctx context.Context, userID string, scope models.Scope) ([]storage.URLRecord, error) {
	records, err := s.repository.FindByOwner(ctx, userID, scope.Category())
	if err != nil {
		return nil, storageErr(err)
	}
	return records, nil
}

func (s *URLService) ListAll(ctx context.Context) ([]storage.URLRecord, error) {
	records, err := s.repository.Read(ctx)
	if err != nil {
		return nil, storageErr(err)
	}
	return records, nil
}

// Delete removes the record matching recordID, userID and scope together.
func (s *URLService) Delete(ctx context.Context, userID, recordID string, scope models.Scope) (bool, error) {
	var (
		deleted bool
		err     error
	)
	if s.counted != nil {
		deleted, err = s.counted.DeleteCounted(ctx, recordID, userID, scope.Category())
	} else {
		deleted, err = s.repository.Delete(ctx, recordID, userID, scope.Category())
	}
	if err != nil {
		return false, storageErr(err)
	}
	if !deleted {
		return false, internalerrors.ErrNotFound
	}

	s.logger.Info("short URL deleted", zap.String("id", recordID), zap.String("user_id", userID))

	if s.counted == nil {
		s.counters.DecrementUser(ctx, userID, recordID)
		if !scope.IsRoot() {
			s.counters.DecrementCategory(ctx, scope.Category(), recordID)
		}
	}

	return true, nil
}

// Resolve returns the destination for endpoint. A missing or blacklisted
// endpoint yields ok == false and no error.
func (s *URLService) Resolve(ctx context.Context, endpoint string) (string, bool, error) {
	if !wellFormed(endpoint) {
		return "", false, nil
	}

	r, err := s.repository.FindRedirect(ctx, endpoint)
	if errors.Is(err, storage.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, storageErr(err)
	}
	return r.Original, true, nil
}

// wellFormed reports whether endpoint could have been allocated at all.
// Anything else, such as favicon.ico, is a miss without a store lookup.
func wellFormed(endpoint string) bool {
	scope, alias := models.ParseEndpoint(endpoint)
	if !aliasPattern.MatchString(alias) || scope.Endpoint(alias) != endpoint {
		return false
	}
	return scope.IsRoot() || aliasPattern.MatchString(scope.Category())
}

// RecordHit counts a redirect that was actually served.
func (s *URLService) RecordHit(ctx context.Context, endpoint string) error {
	_, err := s.repository.IncrementHits(ctx, endpoint, s.now())
	if errors.Is(err, storage.ErrNotFound) {
		return internalerrors.ErrNotFound
	}
	if err != nil {
		return storageErr(err)
	}
	return nil
}

// Rename moves an owned record to a new alias inside its own scope.
func (s *URLService) Rename(ctx context.Context, userID, recordID string, scope models.Scope, alias string) (*storage.URLRecord, error) {
	r, err := s.repository.FindByID(ctx, recordID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, internalerrors.ErrNotFound
	}
	if err != nil {
		return nil, storageErr(err)
	}
	if r.UserID != userID || r.Suborg != scope.Category() {
		return nil, internalerrors.ErrNotFound
	}

	if _, err := s.validator.Validate(ctx, alias, scope); err != nil {
		return nil, err
	}

	updated, err := s.repository.UpdateShort(ctx, recordID, scope.Endpoint(alias))
	switch {
	case errors.Is(err, storage.ErrConflict):
		return nil, internalerrors.ErrAlreadyExists
	case errors.Is(err, storage.ErrNotFound):
		return nil, internalerrors.ErrNotFound
	case err != nil:
		return nil, storageErr(err)
	}
	return updated, nil
}

func (s *URLService) BlacklistURL(ctx context.Context, recordID string) (*storage.URLRecord, error) {
	return s.setBlacklisted(ctx, recordID, true)
}

func (s *URLService) WhitelistURL(ctx context.Context, recordID string) (*storage.URLRecord, error) {
	return s.setBlacklisted(ctx, recordID, false)
}

func (s *URLService) setBlacklisted(ctx context.Context, recordID string, blacklisted bool) (*storage.URLRecord, error) {
	r, err := s.repository.SetBlacklisted(ctx, recordID, blacklisted)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, internalerrors.ErrNotFound
	}
	if err != nil {
		return nil, storageErr(err)
	}

	s.logger.Info("blacklist flag changed", zap.String("id", recordID), zap.Bool("blacklisted", blacklisted))
	return r, nil
}

// CreateCategory registers a new suborg owned by identity.
func (s *URLService) CreateCategory(ctx context.Context, identity models.Identity, name string) (*storage.Category, error) {
	if identity.Blacklisted {
		return nil, internalerrors.ErrForbidden
	}
	if err := s.validator.ValidateCategory(name); err != nil {
		return nil, err
	}

	c, err := s.repository.CreateCategory(ctx, storage.Category{Name: name, OwnerID: identity.UserID})
	if errors.Is(err, storage.ErrConflict) {
		return nil, internalerrors.New(internalerrors.KindAlreadyExists, "the requested suborg already exists")
	}
	if err != nil {
		return nil, storageErr(err)
	}
	return c, nil
}

func (s *URLService) ListCategories(ctx context.Context, userID string) ([]storage.Category, error) {
	cs, err := s.repository.FindCategoriesByOwner(ctx, userID)
	if err != nil {
		return nil, storageErr(err)
	}
	return cs, nil
}

func (s *URLService) GetStats(ctx context.Context) (*storage.Stats, error) {
	stats, err := s.repository.GetStats(ctx)
	if err != nil {
		return nil, storageErr(err)
	}
	return stats, nil
}

// GetUser returns the user's counters. A user who never created a URL has
// no row yet and is reported with a zero count.
func (s *URLService) GetUser(ctx context.Context, userID string) (*storage.User, error) {
	u, err := s.repository.FindUser(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return &storage.User{ID: userID}, nil
	}
	if err != nil {
		return nil, storageErr(err)
	}
	return u, nil
}
