// Package repository is the PostgreSQL record store.
package repository

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/atinyakov/suborg-shortener/internal/storage"
)

//go:embed migrations/*.sql
var migrations embed.FS

// InitDB connects to ps and brings the schema up to date.
func InitDB(ctx context.Context, ps string, logger *zap.Logger) (*sql.DB, error) {
	db, err := sql.Open("pgx", ps)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to reach database: %w", err)
	}

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("Database connected and schema ready")
	return db, nil
}

// Migrate applies the embedded migrations.
func Migrate(db *sql.DB) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("unable to read migrations: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("unable to create db instance: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "shortener", driver)
	if err != nil {
		return fmt.Errorf("unable to create migration: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("unable to apply migrations: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

type URLRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func CreateURLRepository(db *sql.DB, logger *zap.Logger) *URLRepository {
	return &URLRepository{
		db:     db,
		logger: logger,
	}
}

const recordColumns = "id, user_id, email, name, suborg, short_url, original_url, hits, last_hit_at, blacklisted, created_at"

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*storage.URLRecord, error) {
	var r storage.URLRecord
	var lastHit sql.NullTime

	err := row.Scan(&r.ID, &r.UserID, &r.Email, &r.Name, &r.Suborg, &r.Short, &r.Original,
		&r.Hits, &lastHit, &r.Blacklisted, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if lastHit.Valid {
		r.LastHitAt = lastHit.Time
	}
	return &r, nil
}

func (r *URLRepository) queryRecords(ctx context.Context, query string, args ...any) ([]storage.URLRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]storage.URLRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

const insertRecord = "INSERT INTO url_records (id, user_id, email, name, suborg, short_url, original_url, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8);"

func prepareRecord(v storage.URLRecord) storage.URLRecord {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now()
	}
	return v
}

func (r *URLRepository) Write(ctx context.Context, v storage.URLRecord) (*storage.URLRecord, error) {
	v = prepareRecord(v)

	_, err := r.db.ExecContext(ctx, insertRecord,
		v.ID, v.UserID, v.Email, v.Name, v.Suborg, v.Short, v.Original, v.CreatedAt,
	)
	if isUniqueViolation(err) {
		return nil, storage.ErrConflict
	}
	if err != nil {
		r.logger.Error("Write error", zap.Error(err))
		return nil, err
	}

	return &v, nil
}

// withTx runs fn in a transaction and commits when fn returns nil.
func (r *URLRepository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.logger.Error("Rollback failed", zap.Error(rbErr))
		}
		return err
	}

	return tx.Commit()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// execOne runs query and reports storage.ErrNotFound when no row changed.
func execOne(ctx context.Context, ex execer, query string, args ...any) error {
	res, err := ex.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// WriteCounted inserts v and increments the owner's counter, and the
// category's counter when v is scoped, in one transaction. A missing
// category rolls everything back with storage.ErrNotFound.
func (r *URLRepository) WriteCounted(ctx context.Context, v storage.URLRecord) (*storage.URLRecord, error) {
	v = prepareRecord(v)

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, insertRecord,
			v.ID, v.UserID, v.Email, v.Name, v.Suborg, v.Short, v.Original, v.CreatedAt,
		)
		if isUniqueViolation(err) {
			return storage.ErrConflict
		}
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			"INSERT INTO users (id, url_count) VALUES ($1, 1) ON CONFLICT (id) DO UPDATE SET url_count = users.url_count + 1;",
			v.UserID)
		if err != nil {
			return err
		}

		if v.Suborg == "" {
			return nil
		}
		return execOne(ctx, tx, "UPDATE categories SET url_count = url_count + 1 WHERE name = $1;", v.Suborg)
	})
	if err != nil {
		if !errors.Is(err, storage.ErrConflict) && !errors.Is(err, storage.ErrNotFound) {
			r.logger.Error("Counted write error", zap.Error(err))
		}
		return nil, err
	}

	return &v, nil
}

// DeleteCounted removes the record matching all three fields and
// decrements its counters in the same transaction. Counters never go
// below zero.
func (r *URLRepository) DeleteCounted(ctx context.Context, id, userID, suborg string) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, nil
	}

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		err := execOne(ctx, tx,
			"DELETE FROM url_records WHERE id = $1 AND user_id = $2 AND suborg = $3;", id, userID, suborg)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, "UPDATE users SET url_count = GREATEST(url_count - 1, 0) WHERE id = $1;", userID)
		if err != nil {
			return err
		}

		if suborg == "" {
			return nil
		}
		_, err = tx.ExecContext(ctx, "UPDATE categories SET url_count = GREATEST(url_count - 1, 0) WHERE name = $1;", suborg)
		return err
	})
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *URLRepository) Read(ctx context.Context) ([]storage.URLRecord, error) {
	return r.queryRecords(ctx, "SELECT "+recordColumns+" FROM url_records ORDER BY created_at, id;")
}

func (r *URLRepository) ExistsShort(ctx context.Context, short string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM url_records WHERE short_url = $1);", short).Scan(&exists)
	return exists, err
}

func (r *URLRepository) FindRedirect(ctx context.Context, short string) (*storage.URLRecord, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+recordColumns+" FROM url_records WHERE short_url = $1 AND NOT blacklisted;", short)
	return scanRecord(row)
}

func (r *URLRepository) FindByID(ctx context.Context, id string) (*storage.URLRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, storage.ErrNotFound
	}
	row := r.db.QueryRowContext(ctx, "SELECT "+recordColumns+" FROM url_records WHERE id = $1;", id)
	return scanRecord(row)
}

func (r *URLRepository) FindByOwner(ctx context.Context, userID, suborg string) ([]storage.URLRecord, error) {
	return r.queryRecords(ctx,
		"SELECT "+recordColumns+" FROM url_records WHERE user_id = $1 AND suborg = $2 ORDER BY created_at, id;",
		userID, suborg)
}

func (r *URLRepository) Delete(ctx context.Context, id, userID, suborg string) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, nil
	}

	res, err := r.db.ExecContext(ctx,
		"DELETE FROM url_records WHERE id = $1 AND user_id = $2 AND suborg = $3;", id, userID, suborg)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *URLRepository) SetBlacklisted(ctx context.Context, id string, blacklisted bool) (*storage.URLRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, storage.ErrNotFound
	}
	row := r.db.QueryRowContext(ctx,
		"UPDATE url_records SET blacklisted = $2 WHERE id = $1 RETURNING "+recordColumns+";", id, blacklisted)
	return scanRecord(row)
}

func (r *URLRepository) UpdateShort(ctx context.Context, id, short string) (*storage.URLRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, storage.ErrNotFound
	}
	row := r.db.QueryRowContext(ctx,
		"UPDATE url_records SET short_url = $2 WHERE id = $1 RETURNING "+recordColumns+";", id, short)

	rec, err := scanRecord(row)
	if isUniqueViolation(err) {
		return nil, storage.ErrConflict
	}
	return rec, err
}

func (r *URLRepository) IncrementHits(ctx context.Context, short string, at time.Time) (*storage.URLRecord, error) {
	row := r.db.QueryRowContext(ctx,
		"UPDATE url_records SET hits = hits + 1, last_hit_at = $2 WHERE short_url = $1 RETURNING "+recordColumns+";",
		short, at)
	return scanRecord(row)
}

// AdjustUserURLCount adds delta in one statement. A positive delta upserts
// the user row.
func (r *URLRepository) AdjustUserURLCount(ctx context.Context, userID string, delta int64) error {
	if delta > 0 {
		_, err := r.db.ExecContext(ctx,
			"INSERT INTO users (id, url_count) VALUES ($1, $2) ON CONFLICT (id) DO UPDATE SET url_count = users.url_count + EXCLUDED.url_count;",
			userID, delta)
		return err
	}

	return execOne(ctx, r.db, "UPDATE users SET url_count = url_count + $2 WHERE id = $1;", userID, delta)
}

func (r *URLRepository) AdjustCategoryURLCount(ctx context.Context, name string, delta int64) error {
	return execOne(ctx, r.db, "UPDATE categories SET url_count = url_count + $2 WHERE name = $1;", name, delta)
}

// ReconcileUserURLCount resets the user's counter to the number of stored
// records. The counter row is locked before counting, so a counted write
// either commits before the count sees it or waits and increments after.
func (r *URLRepository) ReconcileUserURLCount(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO users (id, url_count) VALUES ($1, 0) ON CONFLICT (id) DO NOTHING;", userID)
		if err != nil {
			return err
		}

		var current int64
		err = tx.QueryRowContext(ctx, "SELECT url_count FROM users WHERE id = $1 FOR UPDATE;", userID).Scan(&current)
		if err != nil {
			return err
		}

		return tx.QueryRowContext(ctx,
			"UPDATE users SET url_count = (SELECT COUNT(*) FROM url_records WHERE user_id = $1) WHERE id = $1 RETURNING url_count;",
			userID).Scan(&count)
	})
	return count, err
}

func (r *URLRepository) ReconcileCategoryURLCount(ctx context.Context, name string) (int64, error) {
	var count int64
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var current int64
		err := tx.QueryRowContext(ctx, "SELECT url_count FROM categories WHERE name = $1 FOR UPDATE;", name).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}

		return tx.QueryRowContext(ctx,
			"UPDATE categories SET url_count = (SELECT COUNT(*) FROM url_records WHERE suborg = $1) WHERE name = $1 RETURNING url_count;",
			name).Scan(&count)
	})
	return count, err
}

func (r *URLRepository) FindUser(ctx context.Context, id string) (*storage.User, error) {
	var u storage.User
	err := r.db.QueryRowContext(ctx, "SELECT id, url_count, created_at FROM users WHERE id = $1;", id).
		Scan(&u.ID, &u.URLCount, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *URLRepository) CreateCategory(ctx context.Context, c storage.Category) (*storage.Category, error) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	c.URLCount = 0

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO categories (name, owner_id, url_count, created_at) VALUES ($1, $2, 0, $3);",
		c.Name, c.OwnerID, c.CreatedAt)
	if isUniqueViolation(err) {
		return nil, storage.ErrConflict
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *URLRepository) FindCategory(ctx context.Context, name string) (*storage.Category, error) {
	var c storage.Category
	err := r.db.QueryRowContext(ctx,
		"SELECT name, owner_id, url_count, created_at FROM categories WHERE name = $1;", name).
		Scan(&c.Name, &c.OwnerID, &c.URLCount, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *URLRepository) FindCategoriesByOwner(ctx context.Context, ownerID string) ([]storage.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT name, owner_id, url_count, created_at FROM categories WHERE owner_id = $1 ORDER BY name;", ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]storage.Category, 0)
	for rows.Next() {
		var c storage.Category
		if err := rows.Scan(&c.Name, &c.OwnerID, &c.URLCount, &c.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *URLRepository) GetStats(ctx context.Context) (*storage.Stats, error) {
	var s storage.Stats
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*), COUNT(DISTINCT user_id) FROM url_records;").
		Scan(&s.URLs, &s.Users)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *URLRepository) PingContext(c context.Context) error {
	return r.db.PingContext(c)
}
