package feed

import (
	"database/sql"
	"strings"
	"time"

	"github.com/breakingdawnisback/Job-Importer/errors"
)

// ErrNotFound is returned when the referenced feed does not exist.
var ErrNotFound = errors.New("feed not found")

// ErrDuplicateURL is returned when creating or updating a feed would
// violate the unique url constraint.
var ErrDuplicateURL = errors.New("feed url already registered")

// Store handles persistence of feeds.
type Store struct {
	db *sql.DB
}

// NewStore creates a new feed store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const feedColumns = `
	id, name, url, category, job_types, region, is_active,
	last_import_at, total_jobs_imported, created_at, updated_at
`

// Create inserts a new feed.
func (s *Store) Create(f *Feed) error {
	query := `
		INSERT INTO feeds (` + feedColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query,
		f.ID, f.Name, f.URL, f.Category, f.JobTypes, f.Region, f.IsActive,
		f.LastImportAt, f.TotalJobsImported, f.CreatedAt, f.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.Wrapf(ErrDuplicateURL, "url %s", f.URL)
		}
		err = errors.Wrap(err, "failed to create feed")
		return errors.WithDetailf(err, "Feed ID: %s", f.ID)
	}
	return nil
}

// Get retrieves a feed by ID.
func (s *Store) Get(id string) (*Feed, error) {
	query := `SELECT ` + feedColumns + ` FROM feeds WHERE id = ?`
	f, err := scanFeed(s.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrNotFound, "id %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get feed")
	}
	return f, nil
}

// List returns all feeds, newest first. A non-empty search term filters by
// substring match over name, url, category, and region.
func (s *Store) List(search string) ([]*Feed, error) {
	query := `SELECT ` + feedColumns + ` FROM feeds`
	var args []interface{}
	if search != "" {
		query += `
			WHERE name LIKE ? OR url LIKE ? OR category LIKE ? OR region LIKE ?`
		pattern := "%" + search + "%"
		args = []interface{}{pattern, pattern, pattern, pattern}
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list feeds")
	}
	defer rows.Close()

	var feeds []*Feed
	for rows.Next() {
		f, err := scanFeed(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan feed")
		}
		feeds = append(feeds, f)
	}
	return feeds, rows.Err()
}

// Update persists configuration changes to an existing feed. Aggregates are
// not written here; RecordImport owns those.
func (s *Store) Update(f *Feed) error {
	f.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE feeds
		SET name = ?, url = ?, category = ?, job_types = ?, region = ?,
		    is_active = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := s.db.Exec(query,
		f.Name, f.URL, f.Category, f.JobTypes, f.Region,
		f.IsActive, f.UpdatedAt, f.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.Wrapf(ErrDuplicateURL, "url %s", f.URL)
		}
		return errors.Wrap(err, "failed to update feed")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read rows affected")
	}
	if affected == 0 {
		return errors.Wrapf(ErrNotFound, "id %s", f.ID)
	}
	return nil
}

// Delete removes a feed. Import sessions and jobs cascade via foreign keys.
func (s *Store) Delete(id string) error {
	res, err := s.db.Exec(`DELETE FROM feeds WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete feed")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read rows affected")
	}
	if affected == 0 {
		return errors.Wrapf(ErrNotFound, "id %s", id)
	}
	return nil
}

// RecordImport applies the aggregate effects of a completed import session:
// last_import_at and a cumulative increment by the session's new-job count.
// The increment happens inside the UPDATE so concurrent sessions for the
// same feed never lose updates.
func (s *Store) RecordImport(feedID string, newCount int, completedAt time.Time) error {
	query := `
		UPDATE feeds
		SET last_import_at = ?,
		    total_jobs_imported = total_jobs_imported + ?,
		    updated_at = ?
		WHERE id = ?
	`
	res, err := s.db.Exec(query, completedAt, newCount, time.Now().UTC(), feedID)
	if err != nil {
		err = errors.Wrap(err, "failed to record import aggregates")
		return errors.WithDetailf(err, "Feed ID: %s", feedID)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read rows affected")
	}
	if affected == 0 {
		return errors.Wrapf(ErrNotFound, "id %s", feedID)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFeed(row rowScanner) (*Feed, error) {
	var f Feed
	var lastImportAt sql.NullTime
	err := row.Scan(
		&f.ID, &f.Name, &f.URL, &f.Category, &f.JobTypes, &f.Region,
		&f.IsActive, &lastImportAt, &f.TotalJobsImported,
		&f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastImportAt.Valid {
		t := lastImportAt.Time
		f.LastImportAt = &t
	}
	return &f, nil
}

// isUniqueViolation reports whether err is a sqlite unique constraint error.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
