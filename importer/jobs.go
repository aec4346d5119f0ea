package importer

import (
	"database/sql"
	"time"

	"github.com/breakingdawnisback/Job-Importer/errors"
)

// Job is one stored job posting, deduplicated across imports by its stable
// source identifier.
type Job struct {
	SourceJobID string     `json:"sourceJobId"`
	FeedID      string     `json:"feedId"`
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	Company     string     `json:"company,omitempty"`
	Location    string     `json:"location,omitempty"`
	Description string     `json:"description,omitempty"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
	FirstSeenAt time.Time  `json:"firstSeenAt"`
	LastSeenAt  time.Time  `json:"lastSeenAt"`
}

// JobStore handles persistence of job postings.
type JobStore struct {
	db *sql.DB
}

// NewJobStore creates a new job store.
func NewJobStore(db *sql.DB) *JobStore {
	return &JobStore{db: db}
}

// Upsert inserts the posting or refreshes the existing row with the same
// source id. Returns true when the posting was new.
func (s *JobStore) Upsert(job *Job) (created bool, err error) {
	now := time.Now().UTC()

	var firstSeen time.Time
	err = s.db.QueryRow(
		`SELECT first_seen_at FROM jobs WHERE source_job_id = ?`,
		job.SourceJobID,
	).Scan(&firstSeen)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		created = true
		firstSeen = now
	case err != nil:
		return false, errors.Wrap(err, "failed to look up job")
	}

	query := `
		INSERT INTO jobs (
			source_job_id, feed_id, title, url, company, location,
			description, published_at, first_seen_at, last_seen_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_job_id) DO UPDATE SET
			feed_id = excluded.feed_id,
			title = excluded.title,
			url = excluded.url,
			company = excluded.company,
			location = excluded.location,
			description = excluded.description,
			published_at = excluded.published_at,
			last_seen_at = excluded.last_seen_at
	`
	_, err = s.db.Exec(query,
		job.SourceJobID, job.FeedID, job.Title, job.URL, job.Company,
		job.Location, job.Description, job.PublishedAt, firstSeen, now,
	)
	if err != nil {
		err = errors.Wrap(err, "failed to upsert job")
		return false, errors.WithDetailf(err, "Source job ID: %s", job.SourceJobID)
	}

	job.FirstSeenAt = firstSeen
	job.LastSeenAt = now
	return created, nil
}

// ListByFeed returns the stored postings for a feed, most recently seen
// first.
func (s *JobStore) ListByFeed(feedID string, limit int) ([]*Job, error) {
	query := `
		SELECT source_job_id, feed_id, title, url, company, location,
		       description, published_at, first_seen_at, last_seen_at
		FROM jobs
		WHERE feed_id = ?
		ORDER BY last_seen_at DESC
		LIMIT ?
	`
	rows, err := s.db.Query(query, feedID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list jobs")
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		var job Job
		var publishedAt sql.NullTime
		err := rows.Scan(
			&job.SourceJobID, &job.FeedID, &job.Title, &job.URL, &job.Company,
			&job.Location, &job.Description, &publishedAt,
			&job.FirstSeenAt, &job.LastSeenAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan job")
		}
		if publishedAt.Valid {
			t := publishedAt.Time
			job.PublishedAt = &t
		}
		jobs = append(jobs, &job)
	}
	return jobs, rows.Err()
}
