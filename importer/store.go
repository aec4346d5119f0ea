package importer

import (
	"database/sql"

	"github.com/breakingdawnisback/Job-Importer/errors"
)

// ErrSessionNotFound is returned when the referenced session does not exist.
var ErrSessionNotFound = errors.New("import session not found")

// ErrSessionTerminal is returned when attempting to finalize a session that
// already reached a terminal status.
var ErrSessionTerminal = errors.New("import session already terminal")

// SessionStore handles persistence of import sessions.
type SessionStore struct {
	db *sql.DB
}

// NewSessionStore creates a new session store.
func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

const sessionColumns = `
	id, feed_id, feed_url, feed_name, status,
	total_fetched, new_count, updated_count, failed_count, total_imported,
	failure_details, started_at, completed_at, duration_ms
`

// Create inserts a new in-progress session.
func (s *SessionStore) Create(session *Session) error {
	detailsJSON, err := MarshalFailureDetails(session.FailureDetails)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO import_sessions (` + sessionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.Exec(query,
		session.ID, session.FeedID, session.FeedURL, session.FeedName, session.Status,
		session.TotalFetched, session.NewCount, session.UpdatedCount,
		session.FailedCount, session.TotalImported,
		detailsJSON, session.StartedAt, session.CompletedAt, session.DurationMs,
	)
	if err != nil {
		err = errors.Wrap(err, "failed to create import session")
		err = errors.WithDetailf(err, "Session ID: %s", session.ID)
		return errors.WithDetailf(err, "Feed ID: %s", session.FeedID)
	}
	return nil
}

// Get retrieves a session by ID.
func (s *SessionStore) Get(id string) (*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM import_sessions WHERE id = ?`
	session, err := scanSession(s.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrSessionNotFound, "id %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get import session")
	}
	return session, nil
}

// Finalize writes the terminal state of a session. The status guard in the
// WHERE clause makes terminal transitions happen at most once: a session
// that already completed or failed is never overwritten.
func (s *SessionStore) Finalize(session *Session) error {
	if !session.Status.IsTerminal() {
		return errors.Newf("cannot finalize session %s with status %s", session.ID, session.Status)
	}
	detailsJSON, err := MarshalFailureDetails(session.FailureDetails)
	if err != nil {
		return err
	}

	query := `
		UPDATE import_sessions
		SET status = ?,
		    total_fetched = ?, new_count = ?, updated_count = ?,
		    failed_count = ?, total_imported = ?,
		    failure_details = ?, completed_at = ?, duration_ms = ?
		WHERE id = ? AND status = 'in_progress'
	`
	res, err := s.db.Exec(query,
		session.Status,
		session.TotalFetched, session.NewCount, session.UpdatedCount,
		session.FailedCount, session.TotalImported,
		detailsJSON, session.CompletedAt, session.DurationMs,
		session.ID,
	)
	if err != nil {
		err = errors.Wrap(err, "failed to finalize import session")
		return errors.WithDetailf(err, "Session ID: %s", session.ID)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read rows affected")
	}
	if affected == 0 {
		// Either the session id is unknown or it already reached a
		// terminal status. Distinguish for the caller.
		if _, getErr := s.Get(session.ID); getErr != nil {
			return getErr
		}
		return errors.Wrapf(ErrSessionTerminal, "id %s", session.ID)
	}
	return nil
}

// List returns sessions newest first, optionally filtered by feed.
func (s *SessionStore) List(feedID string, limit int) ([]*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM import_sessions`
	var args []interface{}
	if feedID != "" {
		query += ` WHERE feed_id = ?`
		args = append(args, feedID)
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list import sessions")
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan import session")
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// Delete removes a session. Sessions are never deleted automatically; this
// backs the explicit user action only.
func (s *SessionStore) Delete(id string) error {
	res, err := s.db.Exec(`DELETE FROM import_sessions WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete import session")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read rows affected")
	}
	if affected == 0 {
		return errors.Wrapf(ErrSessionNotFound, "id %s", id)
	}
	return nil
}

func scanSession(row interface{ Scan(...interface{}) error }) (*Session, error) {
	var session Session
	var detailsJSON string
	var completedAt sql.NullTime
	var durationMs sql.NullInt64

	err := row.Scan(
		&session.ID, &session.FeedID, &session.FeedURL, &session.FeedName, &session.Status,
		&session.TotalFetched, &session.NewCount, &session.UpdatedCount,
		&session.FailedCount, &session.TotalImported,
		&detailsJSON, &session.StartedAt, &completedAt, &durationMs,
	)
	if err != nil {
		return nil, err
	}

	details, err := UnmarshalFailureDetails(detailsJSON)
	if err != nil {
		return nil, err
	}
	session.FailureDetails = details

	if completedAt.Valid {
		t := completedAt.Time
		session.CompletedAt = &t
	}
	if durationMs.Valid {
		ms := durationMs.Int64
		session.DurationMs = &ms
	}
	return &session, nil
}
