package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/zherdev/url-shortener/internal/database"
	"github.com/zherdev/url-shortener/internal/models"
)

type urlRecord struct {
	ID        int64          `db:"id"`
	LongURL   string         `db:"long_url"`
	ShortCode sql.NullString `db:"short_code"`
	Clicks    int64          `db:"clicks"`
	CreatedAt time.Time      `db:"created_at"`
	ExpiresAt sql.NullTime   `db:"expires_at"`
	UserID    sql.NullInt64  `db:"user_id"`
}

func (r *urlRecord) ToURL() *models.URL {
	url := &models.URL{
		ID:        r.ID,
		LongURL:   r.LongURL,
		ShortCode: r.ShortCode.String,
		Clicks:    r.Clicks,
		CreatedAt: r.CreatedAt,
	}

	if r.ExpiresAt.Valid {
		expiresAt := r.ExpiresAt.Time
		url.ExpiresAt = &expiresAt
	}
	if r.UserID.Valid {
		userID := r.UserID.Int64
		url.UserID = &userID
	}

	return url
}

type URLRepository struct {
	db *sqlx.DB
}

func NewURLRepository(db *sqlx.DB) *URLRepository {
	return &URLRepository{
		db: db,
	}
}

func (r *URLRepository) FindByLongURL(ctx context.Context, longURL string) (*models.URL, error) {
	const op = "database.postgres.URLRepository.FindByLongURL"

	rec := new(urlRecord)
	query := `SELECT * FROM urls WHERE long_url = $1`

	err := r.db.GetContext(ctx, rec, query, longURL)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get url record: %w", op, err)
	}

	return rec.ToURL(), nil
}

// Insert creates a record without a short code. The code is assigned in a
// second step once the store-generated id is known.
func (r *URLRepository) Insert(ctx context.Context, longURL string, userID *int64, expiresAt *time.Time) (*models.URL, error) {
	const op = "database.postgres.URLRepository.Insert"

	rec := new(urlRecord)
	query := `INSERT INTO urls(long_url, user_id, expires_at)
		VALUES ($1, $2, $3)
		RETURNING *`

	err := r.db.GetContext(ctx, rec, query, longURL, userID, expiresAt)
	if err != nil {
		if isUniqueViolationError(err) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrDuplicateLongURL)
		}

		return nil, fmt.Errorf("%s: failed to create url record: %w", op, err)
	}

	return rec.ToURL(), nil
}

func (r *URLRepository) SetShortCode(ctx context.Context, id int64, shortCode string) error {
	const op = "database.postgres.URLRepository.SetShortCode"

	query := `UPDATE urls
		SET short_code = $1
		WHERE id = $2`

	res, err := r.db.ExecContext(ctx, query, shortCode, id)
	if err != nil {
		return fmt.Errorf("%s: failed to set short code: %w", op, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: failed to get affected rows: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, database.ErrURLNotFound)
	}

	return nil
}

func (r *URLRepository) FindByShortCode(ctx context.Context, shortCode string) (*models.URL, error) {
	const op = "database.postgres.URLRepository.FindByShortCode"

	rec := new(urlRecord)
	query := `SELECT * FROM urls WHERE short_code = $1`

	err := r.db.GetContext(ctx, rec, query, shortCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get url record: %w", op, err)
	}

	return rec.ToURL(), nil
}

// ApplyClickDeltas merges pending click counts into the clicks baseline.
// All deltas of one flush run are committed in a single transaction, and
// each update is an atomic in-place addition, so concurrent flush runs
// cannot lose increments.
func (r *URLRepository) ApplyClickDeltas(ctx context.Context, deltas []models.ClickDelta) error {
	const op = "database.postgres.URLRepository.ApplyClickDeltas"

	if len(deltas) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `UPDATE urls
		SET clicks = clicks + $1
		WHERE short_code = $2`

	for _, delta := range deltas {
		if _, err := tx.ExecContext(ctx, query, delta.Delta, delta.ShortCode); err != nil {
			return fmt.Errorf("%s: failed to apply click delta: %w", op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	return nil
}
